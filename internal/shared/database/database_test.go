package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomly/internal/shared/config"
	applog "roomly/pkg/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	pg, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	return &DB{PostgreSQL: pg, Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}, mock, mr
}

func TestHealthCheck_AllUp(t *testing.T) {
	db, mock, _ := newMockDB(t)
	mock.ExpectPing()

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck_ReportsEachFailure(t *testing.T) {
	db, mock, mr := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("pg down"))
	mr.Close()

	err := db.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: pg down")
	assert.Contains(t, err.Error(), "redis:")
}

func TestStatus(t *testing.T) {
	db, mock, _ := newMockDB(t)
	mock.ExpectPing()

	status := db.Status(context.Background())
	assert.Equal(t, "up", status["postgres"])
	assert.Equal(t, "up", status["redis"])

	db.Redis = nil
	mock.ExpectPing()
	_, ok := db.Status(context.Background())["redis"]
	assert.False(t, ok)
}

func TestWithRetry(t *testing.T) {
	cfg := config.DatabaseConfig{ConnectAttempts: 3, ConnectBackoff: time.Millisecond}
	log := applog.GetDefault()

	calls := 0
	err := withRetry(cfg, log, "postgres", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = withRetry(cfg, log, "redis", func(ctx context.Context) error {
		calls++
		return errors.New("refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "redis unreachable after 3 attempts")
}
