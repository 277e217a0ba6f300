package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret, "AUTH_SECRET must stay empty when unset")
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("SHIFT_LOCK_TTL_SECONDS", "-3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "soon")
	t.Setenv("RUN_MIGRATIONS", "maybe")
	t.Setenv("PORT", "9090")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.ShiftLockTTL())
	assert.Equal(t, 480*time.Minute, cfg.AccessTokenTTL())
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, ":9090", cfg.Address())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("SHIFT_LOCK_TTL_SECONDS", "3")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("INSTANCE_NAME", "pos-b")

	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.ShiftLockTTL())
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "pos-b", cfg.InstanceName)
}

func TestLoadDefaultsInstanceName(t *testing.T) {
	t.Setenv("INSTANCE_NAME", "")

	cfg := Load()
	assert.NotEmpty(t, cfg.InstanceName)
}
