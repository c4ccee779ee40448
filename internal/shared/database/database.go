package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roomly/internal/shared/config"
	applog "roomly/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds database connections. Redis is nil when disabled.
type DB struct {
	PostgreSQL *gorm.DB
	Redis      *redis.Client
}

// InitDB connects to PostgreSQL (and Redis when enabled), then migrates the
// schema. Startup pings are retried so the API can come up alongside its
// containers.
func InitDB(cfg *config.Config) (*DB, error) {
	log := applog.GetDefault()

	pg, err := openPostgres(cfg, log)
	if err != nil {
		return nil, err
	}
	db := &DB{PostgreSQL: pg}

	if err := Migrate(pg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if cfg.Database.ExclusionConstraint {
		if err := MigrateConstraints(pg); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to add constraints: %w", err)
		}
	}

	if cfg.Redis.Enabled {
		db.Redis = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.PoolSize / 4,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		err := withRetry(cfg.Database, log, "redis", func(ctx context.Context) error {
			return db.Redis.Ping(ctx).Err()
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		log.Info("Redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	return db, nil
}

func openPostgres(cfg *config.Config, log *applog.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.IsDevelopment() {
		level = gormlogger.Info
	}

	pg, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.New(gormWriter{log}, gormlogger.Config{
			SlowThreshold:             cfg.Database.SlowQuery,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc:                                  func() time.Time { return time.Now().UTC() },
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	sqlDB, err := pg.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := withRetry(cfg.Database, log, "postgres", sqlDB.PingContext); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	log.Info("PostgreSQL connected",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name),
		slog.Int("max_open_conns", cfg.Database.MaxOpenConns),
	)
	return pg, nil
}

// withRetry runs ping up to ConnectAttempts times, each with a 5s deadline
func withRetry(cfg config.DatabaseConfig, log *applog.Logger, name string, ping func(context.Context) error) error {
	attempts := max(cfg.ConnectAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < attempts {
			log.Warn("Connection attempt failed, retrying",
				slog.String("store", name),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", cfg.ConnectBackoff),
				slog.Any("error", err),
			)
			time.Sleep(cfg.ConnectBackoff)
		}
	}
	return fmt.Errorf("%s unreachable after %d attempts: %w", name, attempts, err)
}

// gormWriter routes gorm's query log through the application logger
type gormWriter struct {
	log *applog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Debug(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}

// Close closes all database connections
func (db *DB) Close() error {
	var errs []error

	if db.PostgreSQL != nil {
		if sqlDB, err := db.PostgreSQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("postgres: %w", err))
			}
		}
	}
	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Status pings each configured store and reports "up" or the error text
func (db *DB) Status(ctx context.Context) map[string]string {
	status := make(map[string]string, 2)
	if db.PostgreSQL != nil {
		status["postgres"] = describe(db.pingPostgres(ctx))
	}
	if db.Redis != nil {
		status["redis"] = describe(db.Redis.Ping(ctx).Err())
	}
	return status
}

// HealthCheck returns the joined ping errors of every configured store
func (db *DB) HealthCheck(ctx context.Context) error {
	var errs []error
	if db.PostgreSQL != nil {
		if err := db.pingPostgres(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if db.Redis != nil {
		if err := db.Redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (db *DB) pingPostgres(ctx context.Context) error {
	sqlDB, err := db.PostgreSQL.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func describe(err error) string {
	if err != nil {
		return err.Error()
	}
	return "up"
}
