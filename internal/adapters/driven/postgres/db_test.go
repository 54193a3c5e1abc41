package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/zipsync")

	assert.Equal(t, "postgres://localhost/zipsync", cfg.URL)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestNullTimeRoundTrip(t *testing.T) {
	assert.False(t, NullTime(nil).Valid)
	assert.Nil(t, TimePtr(NullTime(nil)))

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	nt := NullTime(&now)
	assert.True(t, nt.Valid)
	assert.Equal(t, now, *TimePtr(nt))
}

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"documents", "tasks", "scheduled_tasks"} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}

func TestHashLockName(t *testing.T) {
	a := hashLockName("run")
	assert.Equal(t, a, hashLockName("run"))
	assert.NotEqual(t, a, hashLockName("report"))
}

func TestAdvisoryLock_ReleaseUnheld(t *testing.T) {
	lock := NewAdvisoryLock(nil)

	assert.NoError(t, lock.Release(context.Background(), "never-acquired"))
	assert.NoError(t, lock.Extend(context.Background(), "never-acquired", time.Minute))
}
