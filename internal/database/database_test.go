package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/reelarr/internal/config"
	"github.com/jmylchreest/reelarr/internal/models"
)

func memoryConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}
}

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(memoryConfig(), nil, &Options{PrepareStmt: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNew_SQLite(t *testing.T) {
	db := setupTestDB(t)

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())
}

func TestNew_InvalidDriver(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "invalid", DSN: ":memory:"}

	db, err := New(cfg, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDB_Close(t *testing.T) {
	db, err := New(memoryConfig(), nil, nil)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}

func TestDB_SQLitePragmas(t *testing.T) {
	db := setupTestDB(t)

	// In-memory databases keep a memory journal instead of WAL.
	var journalMode string
	require.NoError(t, db.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "memory", journalMode)

	var foreignKeys int
	require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)
}

func TestDB_Migrate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))
	assert.True(t, db.Migrator().HasTable("series"))

	series := &models.Series{Name: "Dark", NormalizedName: "dark", ContentType: models.ContentTypeSeries}
	require.NoError(t, db.Create(series).Error)

	// A second run has nothing pending and keeps the data.
	require.NoError(t, db.Migrate(ctx))
	var count int64
	require.NoError(t, db.Model(&models.Series{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		wantOpen int
		wantIdle int
	}{
		{"sqlite memory", config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, 1, 1},
		{"sqlite shared memory", config.DatabaseConfig{Driver: "sqlite", DSN: "file:x?mode=memory&cache=shared"}, 1, 1},
		{"sqlite file", config.DatabaseConfig{Driver: "sqlite", DSN: "reelarr.db"}, 6, 3},
		{"postgres uses config", config.DatabaseConfig{Driver: "postgres", MaxOpenConns: 25, MaxIdleConns: 10}, 25, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, idle := poolSize(tt.cfg)
			assert.Equal(t, tt.wantOpen, open)
			assert.Equal(t, tt.wantIdle, idle)
		})
	}
}

func TestClassifyDBError(t *testing.T) {
	assert.Equal(t, "SQLITE_BUSY", classifyDBError(errors.New("database is locked (5)")))
	assert.Equal(t, "TIMEOUT", classifyDBError(context.DeadlineExceeded))
	assert.Equal(t, "CONTEXT_CANCELED", classifyDBError(context.Canceled))
	assert.Equal(t, "OTHER", classifyDBError(errors.New("syntax error")))
}

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logger.LogLevel
	}{
		{"silent", logger.Silent},
		{"error", logger.Error},
		{"warn", logger.Warn},
		{"info", logger.Info},
		{"unknown", logger.Warn},
		{"", logger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, gormLogLevel(tt.level))
		})
	}
}
