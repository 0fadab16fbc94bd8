package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 4, cfg.DiscsPerPlayer)
	assert.Equal(t, 75, cfg.WinThreshold)
	assert.Equal(t, "sudden_death", cfg.TiePolicy)
	assert.Equal(t, "server", cfg.PhysicsMode)
	assert.Equal(t, 2*time.Second, cfg.ChargePeriod())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WIN_THRESHOLD", "21")
	t.Setenv("REST_EPSILON", "0.25")
	t.Setenv("ROUND_DELAY_MS", "500")
	t.Setenv("DISCS_PER_PLAYER", "not-a-number")

	cfg := Load()

	assert.Equal(t, 21, cfg.WinThreshold)
	assert.InDelta(t, 0.25, cfg.RestEpsilon, 1e-9)
	assert.Equal(t, 500*time.Millisecond, cfg.RoundDelay())
	assert.Equal(t, 4, cfg.DiscsPerPlayer, "malformed ints fall back to the default")
}

func TestSessionDurations(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "2")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, 2*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 4*time.Hour, cfg.AdminSessionTTL())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "migrations", cfg.MigrationsDir)
}
