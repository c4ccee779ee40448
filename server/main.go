package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomly/api/routes"
	"roomly/internal/availability"
	"roomly/internal/conflicts"
	"roomly/internal/domain"
	"roomly/internal/notifications"
	"roomly/internal/reservations"
	"roomly/internal/shared/config"
	"roomly/internal/shared/database"
	"roomly/internal/shared/middleware"
	"roomly/internal/store"
	"roomly/internal/venues"
	"roomly/internal/waitlist"
	"roomly/pkg/cache"
	"roomly/pkg/logger"
	"roomly/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	bootLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			bootLogger.Info("Production environment: using container environment variables")
		} else {
			bootLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		bootLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// rebuild once the mode and level are known
	appLogger := logger.NewWithLevel(cfg.LogLevel)
	logger.SetDefault(appLogger)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	scheduler, closeScheduler := buildScheduler(cfg, appLogger)
	defer closeScheduler()

	components := buildEngine(cfg, db, scheduler, appLogger)

	sweeper := waitlist.NewJobProcessor(components.Waitlist, &waitlist.JobConfig{
		ExpiryCheckInterval: cfg.Engine.WaitlistSweepInterval,
		BatchSize:           cfg.Engine.WaitlistSweepBatch,
	}, appLogger)

	router := setupRouter(cfg, db, components, buildRateLimiter(cfg, db, appLogger))

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	// Waitlist expiry sweep
	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})

	g.Go(func() error {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.Bool("redis", db.Redis != nil),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...")
		sweeper.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

// buildScheduler picks Kafka when enabled and reachable, otherwise logs
// notifications locally
func buildScheduler(cfg *config.Config, log *logger.Logger) (notifications.Scheduler, func()) {
	if !cfg.Kafka.Enabled {
		log.Info("Kafka disabled, notifications are logged only")
		return notifications.NewLogScheduler(log), func() {}
	}

	kafkaConfig := notifications.DefaultKafkaSchedulerConfig()
	kafkaConfig.Brokers = cfg.Kafka.Brokers
	kafkaConfig.NotificationTopic = cfg.Kafka.NotificationTopic
	kafkaConfig.ScheduledTopic = cfg.Kafka.ScheduledTopic
	kafkaConfig.RetryMax = cfg.Kafka.RetryMax
	kafkaConfig.Timeout = cfg.Kafka.Timeout

	scheduler, err := notifications.NewKafkaScheduler(kafkaConfig, domain.SystemClock(), log)
	if err != nil {
		log.Error("Failed to initialize Kafka scheduler, falling back to log scheduler", slog.Any("error", err))
		return notifications.NewLogScheduler(log), func() {}
	}

	log.Info("Kafka notification scheduler initialized", slog.Any("brokers", cfg.Kafka.Brokers))
	return scheduler, func() {
		log.Info("Stopping notification scheduler...")
		if err := scheduler.Close(); err != nil {
			log.Error("Error closing Kafka producer", slog.Any("error", err))
		}
	}
}

func buildDirectoryCache(cfg *config.Config, db *database.DB, log *logger.Logger) cache.Service {
	switch cfg.Cache.Backend {
	case "redis":
		if db.Redis != nil {
			return cache.NewService(db.Redis)
		}
		log.Warn("Redis cache requested but Redis is disabled, using memory cache")
		return cache.NewMemoryService(cfg.Redis.CacheTTL, cfg.Cache.CleanupInterval)
	case "memory":
		return cache.NewMemoryService(cfg.Redis.CacheTTL, cfg.Cache.CleanupInterval)
	default:
		return nil
	}
}

func buildEngine(cfg *config.Config, db *database.DB, scheduler notifications.Scheduler, log *logger.Logger) routes.Services {
	clock := domain.SystemClock()

	directory := venues.NewService(
		venues.NewRepository(db.PostgreSQL),
		buildDirectoryCache(cfg, db, log),
		cfg.Engine.DirectoryTimeout,
		log,
	)

	var locker *store.RoomLocker
	if db.Redis != nil {
		locker = store.NewRoomLocker(db.Redis, cfg.Redis.RoomLockTTL)
	}
	st := store.NewGormStore(db.PostgreSQL, locker)

	calculator := availability.NewCalculator(directory, st, cfg.Engine.PersistenceTimeout,
		availability.WithMaxWindow(cfg.Engine.MaxAvailabilityWindow))
	detector := conflicts.NewService(calculator, clock, conflicts.Config{
		SlotStep:           cfg.Engine.SlotStep,
		AlternativeHorizon: cfg.Engine.AlternativeHorizon,
		MaxAlternatives:    cfg.Engine.MaxAlternatives,
	}, log)

	waitlistService := waitlist.NewService(st, directory, detector, clock, cfg.Engine.PersistenceTimeout, log)

	reservationService := reservations.NewService(st, directory, detector, waitlistService, scheduler, clock, reservations.Config{
		CheckInGrace:        cfg.Engine.CheckInGrace,
		NoShowGrace:         cfg.Engine.NoShowGrace,
		ReminderLead:        cfg.Engine.ReminderLead,
		DefaultStrategy:     domain.Strategy(cfg.Engine.DefaultStrategy),
		MaxOccurrences:      cfg.Engine.MaxOccurrences,
		PersistenceTimeout:  cfg.Engine.PersistenceTimeout,
		NotificationTimeout: cfg.Engine.NotificationTimeout,
	}, log)

	return routes.Services{
		Directory:    directory,
		Calculator:   calculator,
		Reservations: reservationService,
		Waitlist:     waitlistService,
	}
}

func buildRateLimiter(cfg *config.Config, db *database.DB, log *logger.Logger) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		log.Info("Rate limiting disabled")
		return nil
	}

	rateLimiterConfig := &ratelimit.Config{
		Enabled:          cfg.RateLimit.Enabled,
		WindowDuration:   cfg.RateLimit.WindowDuration,
		DefaultRequests:  cfg.RateLimit.DefaultRequests,
		PublicRequests:   cfg.RateLimit.PublicRequests,
		BookingRequests:  cfg.RateLimit.BookingRequests,
		WaitlistRequests: cfg.RateLimit.WaitlistRequests,
		WhitelistedIPs:   cfg.RateLimit.WhitelistedIPs,
	}

	log.Info("Rate limiter initialized",
		slog.Bool("redis", db.Redis != nil),
		slog.Duration("window", cfg.RateLimit.WindowDuration),
		slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
	)
	if db.Redis != nil {
		return ratelimit.NewRateLimiter(db.Redis, rateLimiterConfig)
	}
	return ratelimit.NewLocalLimiter(rateLimiterConfig)
}

func setupRouter(cfg *config.Config, db *database.DB, services routes.Services, rateLimiter ratelimit.Limiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(middleware.RequestID(), middleware.RequestLogger(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	routes.NewRouter(cfg, db, services).SetupRoutes(engine)

	return engine
}
