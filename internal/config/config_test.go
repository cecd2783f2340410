package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.Safety.CorridorKm)
	assert.Equal(t, 72, cfg.Safety.SinceHours)
	assert.Equal(t, 2.0, cfg.Safety.NearbyRadiusKm)
	assert.Empty(t, cfg.Store.DatabaseURL)
	assert.True(t, cfg.Store.CacheEnabled())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero corridor", func(c *Config) { c.Safety.CorridorKm = 0 }},
		{"huge corridor", func(c *Config) { c.Safety.CorridorKm = 500 }},
		{"negative lookback", func(c *Config) { c.Safety.SinceHours = -1 }},
		{"single point paths", func(c *Config) { c.Safety.MaxPathPoints = 1 }},
		{"no hazards", func(c *Config) { c.Safety.MaxHazards = 0 }},
		{"negative ttl", func(c *Config) { c.Store.CacheTTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestStoreConfig_CacheEnabled(t *testing.T) {
	assert.False(t, StoreConfig{}.CacheEnabled())
	assert.True(t, StoreConfig{CacheTTL: time.Second}.CacheEnabled())
}
