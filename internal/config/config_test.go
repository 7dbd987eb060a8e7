package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.InDelta(t, 0.7, cfg.AITemperature, 0.001)
	assert.Equal(t, 20*time.Second, cfg.AITimeout)
	assert.Equal(t, 2, cfg.AIMaxRetries)
	assert.Equal(t, 300, cfg.CandidatePoolLimit)
	assert.Equal(t, 20, cfg.TierOneMinScore)
	assert.Equal(t, 50, cfg.TierOneLimit)
	assert.Equal(t, 20, cfg.ResultLimit)
	assert.Equal(t, 10*time.Minute, cfg.StuckRunMaxAge)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9999")
	t.Setenv("AI_MAX_RETRIES", "5")
	t.Setenv("TIER_ONE_MIN_SCORE", "35")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 5, cfg.AIMaxRetries)
	assert.Equal(t, 35, cfg.TierOneMinScore)
}

func TestAIBackoff(t *testing.T) {
	cfg := Config{AppEnv: "test"}
	initial, max := cfg.AIBackoff()
	assert.Equal(t, 10*time.Millisecond, initial)
	assert.Equal(t, 50*time.Millisecond, max)

	cfg = Config{AppEnv: "prod", AIBackoffInitialInterval: 2 * time.Second, AIBackoffMaxInterval: 10 * time.Second}
	initial, max = cfg.AIBackoff()
	assert.Equal(t, 2*time.Second, initial)
	assert.Equal(t, 10*time.Second, max)
}
