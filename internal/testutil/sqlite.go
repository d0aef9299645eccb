// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"neurolab/internal/store"
)

// OpenDB returns a private in-memory database with models migrated.
func OpenDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}
	return db
}

// Store wraps OpenDB with a deterministic clock.
func Store(t testing.TB, models ...any) (*store.Store, *Clock) {
	t.Helper()
	clk := NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	return store.New(OpenDB(t, models...), zap.NewNop(), store.WithClock(clk.Now)), clk
}

// Clock advances by a fixed step on every read.
type Clock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{t: start, step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}
