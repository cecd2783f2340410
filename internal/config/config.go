package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete server configuration. Sections are read from
// prefab.yaml and PF__ environment variables on top of DefaultConfig.
type Config struct {
	Safety SafetyConfig `yaml:"safety" koanf:"safety"`
	Store  StoreConfig  `yaml:"store" koanf:"store"`
}

// SafetyConfig holds route matching defaults and request limits
type SafetyConfig struct {
	CorridorKm     float64 `yaml:"corridor_km" koanf:"corridor_km" validate:"gt=0,lte=50"`
	SinceHours     int     `yaml:"since_hours" koanf:"since_hours" validate:"gt=0,lte=8760"`
	NearbyRadiusKm float64 `yaml:"nearby_radius_km" koanf:"nearby_radius_km" validate:"gt=0,lte=100"`
	MaxPathPoints  int     `yaml:"max_path_points" koanf:"max_path_points" validate:"gte=2"`
	MaxHazards     int     `yaml:"max_hazards" koanf:"max_hazards" validate:"gt=0"`
	// MaxHazardRadiusKm pads store bounding boxes so point hazards with a
	// radius just outside the corridor are still fetched
	MaxHazardRadiusKm float64 `yaml:"max_hazard_radius_km" koanf:"max_hazard_radius_km" validate:"gte=0"`
}

// StoreConfig selects and tunes the hazard store
type StoreConfig struct {
	// DatabaseURL enables the PostGIS store; empty runs in memory
	DatabaseURL     string        `yaml:"database_url" koanf:"database_url"`
	CacheTTL        time.Duration `yaml:"cache_ttl" koanf:"cache_ttl" validate:"gte=0"`
	RefreshInterval time.Duration `yaml:"refresh_interval" koanf:"refresh_interval" validate:"gte=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" koanf:"cleanup_interval" validate:"gte=0"`
	SeedFile        string        `yaml:"seed_file" koanf:"seed_file"`
}

// CacheEnabled reports whether queries go through the snapshot cache
func (s StoreConfig) CacheEnabled() bool {
	return s.CacheTTL > 0
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Safety: SafetyConfig{
			CorridorKm:        1.0,
			SinceHours:        72,
			NearbyRadiusKm:    2.0,
			MaxPathPoints:     5000,
			MaxHazards:        500,
			MaxHazardRadiusKm: 5.0,
		},
		Store: StoreConfig{
			CacheTTL:        time.Minute,
			RefreshInterval: 45 * time.Second,
			CleanupInterval: 10 * time.Minute,
		},
	}
}

var validate = validator.New()

// Validate checks ranges on every section
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
