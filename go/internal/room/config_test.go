package room

import (
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Prize(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, decimal.Zero.Equal(cfg.Prize(0)))
	assert.True(t, d(16).Equal(cfg.Prize(2)))
	assert.True(t, d(24).Equal(cfg.Prize(3)))

	cfg.PayoutFraction = decimal.RequireFromString("0.85")
	assert.True(t, d(25).Equal(cfg.Prize(3)), "got %s", cfg.Prize(3))

	cfg.Stake = decimal.RequireFromString("2.50")
	assert.True(t, d(6).Equal(cfg.Prize(3)), "got %s", cfg.Prize(3))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero countdown", func(c *Config) { c.Countdown = 0 }},
		{"zero draw interval", func(c *Config) { c.DrawInterval = 0 }},
		{"negative reset delay", func(c *Config) { c.ResetDelay = -1 }},
		{"one player", func(c *Config) { c.MinPlayers = 1 }},
		{"free rounds", func(c *Config) { c.Stake = decimal.Zero }},
		{"fraction above one", func(c *Config) { c.PayoutFraction = decimal.RequireFromString("1.2") }},
		{"zero fraction", func(c *Config) { c.PayoutFraction = decimal.Zero }},
	}
	assert.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestShuffler_Permutes(t *testing.T) {
	pool := newPool()
	NewShuffler()(pool)

	sorted := slices.Clone(pool)
	slices.Sort(sorted)
	assert.Equal(t, newPool(), sorted)
	assert.NotEqual(t, newPool(), pool)
}
