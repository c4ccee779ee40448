package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	AllowedOrigins []string

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Directory cache
	Cache CacheConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Notification transport
	Kafka KafkaConfig

	// Reservation engine rules and collaborator timeouts
	Engine EngineConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string

	// ExclusionConstraint installs the btree_gist no-overlap constraint on migrate
	ExclusionConstraint bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration

	// ConnectAttempts is how many times startup pings before giving up
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	PoolSize int

	// RoomLockTTL bounds how long a crashed holder can keep a room locked
	RoomLockTTL time.Duration
	CacheTTL    time.Duration
}

// CacheConfig selects the directory cache backend: "redis", "memory" or "none"
type CacheConfig struct {
	Backend         string
	CleanupInterval time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled          bool          `json:"enabled"`
	WindowDuration   time.Duration `json:"window_duration"`
	DefaultRequests  int           `json:"default_requests"`
	PublicRequests   int           `json:"public_requests"`
	BookingRequests  int           `json:"booking_requests"`
	WaitlistRequests int           `json:"waitlist_requests"`
	WhitelistedIPs   []string      `json:"whitelisted_ips"`
}

// KafkaConfig holds the notification producer settings
type KafkaConfig struct {
	Enabled           bool
	Brokers           []string
	NotificationTopic string
	ScheduledTopic    string
	RetryMax          int
	Timeout           time.Duration
}

// EngineConfig holds reservation engine policy
type EngineConfig struct {
	// CheckInGrace is how long before start a guest may check in
	CheckInGrace time.Duration
	// NoShowGrace is how long after start a confirmed reservation may be marked no-show
	NoShowGrace  time.Duration
	ReminderLead time.Duration

	SlotStep           time.Duration
	AlternativeHorizon time.Duration
	MaxAlternatives    int
	MaxOccurrences     int
	DefaultStrategy    string
	// MaxAvailabilityWindow caps the span of one availability check
	MaxAvailabilityWindow time.Duration

	PersistenceTimeout  time.Duration
	DirectoryTimeout    time.Duration
	NotificationTimeout time.Duration

	WaitlistSweepInterval time.Duration
	WaitlistSweepBatch    int
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB
		AllowedOrigins: getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		// Database configuration
		Database: DatabaseConfig{
			Host:                getEnv("DB_HOST", "localhost"),
			Port:                getEnv("DB_PORT", "5432"),
			Name:                getEnv("DB_NAME", "roomly_db"),
			User:                getEnv("DB_USER", "roomly_user"),
			Password:            getEnv("DB_PASSWORD", "roomly_password"),
			SSLMode:             getEnv("DB_SSLMODE", "disable"),
			ExclusionConstraint: getBoolEnv("DB_EXCLUSION_CONSTRAINT", true),
			MaxOpenConns:        getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:        getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime:     getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
			SlowQuery:           getDurationEnv("DB_SLOW_QUERY", 200*time.Millisecond),
			ConnectAttempts:     getIntEnv("DB_CONNECT_ATTEMPTS", 5),
			ConnectBackoff:      getDurationEnv("DB_CONNECT_BACKOFF", 2*time.Second),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			PoolSize: getIntEnv("REDIS_POOL_SIZE", 20),

			RoomLockTTL: getDurationEnv("REDIS_ROOM_LOCK_TTL", 15*time.Second),
			CacheTTL:    getDurationEnv("REDIS_CACHE_TTL", 1*time.Hour),
		},

		Cache: CacheConfig{
			Backend:         getEnv("CACHE_BACKEND", "redis"),
			CleanupInterval: getDurationEnv("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:          getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:   getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:  getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:   getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 120),
			BookingRequests:  getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 30),
			WaitlistRequests: getIntEnv("RATE_LIMIT_WAITLIST_REQUESTS", 30),
			WhitelistedIPs:   getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		Kafka: KafkaConfig{
			Enabled:           getBoolEnv("KAFKA_ENABLED", false),
			Brokers:           getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "reservation-notifications"),
			ScheduledTopic:    getEnv("KAFKA_SCHEDULED_TOPIC", "reservation-notifications-scheduled"),
			RetryMax:          getIntEnv("KAFKA_RETRY_MAX", 3),
			Timeout:           getDurationEnv("KAFKA_TIMEOUT", 10*time.Second),
		},

		Engine: EngineConfig{
			CheckInGrace:       getDurationEnv("ENGINE_CHECK_IN_GRACE", 15*time.Minute),
			NoShowGrace:        getDurationEnv("ENGINE_NO_SHOW_GRACE", 0),
			ReminderLead:       getDurationEnv("ENGINE_REMINDER_LEAD", 1*time.Hour),
			SlotStep:           getDurationEnv("ENGINE_SLOT_STEP", 15*time.Minute),
			AlternativeHorizon: getDurationEnv("ENGINE_ALTERNATIVE_HORIZON", 24*time.Hour),
			MaxAlternatives:    getIntEnv("ENGINE_MAX_ALTERNATIVES", 5),
			MaxOccurrences:     getIntEnv("ENGINE_MAX_OCCURRENCES", 366),
			DefaultStrategy:    getEnv("ENGINE_DEFAULT_STRATEGY", "suggest_alternatives"),

			MaxAvailabilityWindow: getDurationEnv("ENGINE_MAX_AVAILABILITY_WINDOW", 31*24*time.Hour),

			PersistenceTimeout:  getDurationEnv("ENGINE_PERSISTENCE_TIMEOUT", 5*time.Second),
			DirectoryTimeout:    getDurationEnv("ENGINE_DIRECTORY_TIMEOUT", 2*time.Second),
			NotificationTimeout: getDurationEnv("ENGINE_NOTIFICATION_TIMEOUT", 2*time.Second),

			WaitlistSweepInterval: getDurationEnv("ENGINE_WAITLIST_SWEEP_INTERVAL", 1*time.Minute),
			WaitlistSweepBatch:    getIntEnv("ENGINE_WAITLIST_SWEEP_BATCH", 100),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
