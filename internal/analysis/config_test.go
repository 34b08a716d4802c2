package analysis

import (
	"errors"
	"testing"

	"hotspot-core/internal/spatial"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"radius":       func(c *Config) { c.ClusterRadius = 0 },
		"hotspot":      func(c *Config) { c.MinDeathsForHotspot = 0 },
		"window":       func(c *Config) { c.CampingTimeWindow = 0 },
		"min kills":    func(c *Config) { c.CampingMinKillsInWindow = -1 },
		"move radius":  func(c *Config) { c.CampingMaxMovementRadius = 0 },
		"decay":        func(c *Config) { c.HeatDecayRatePerMinute = -0.5 },
		"max clusters": func(c *Config) { c.MaxClusters = 0 },
		"max raw":      func(c *Config) { c.MaxRawEventsRetained = 0 },
		"resolution":   func(c *Config) { c.HeatmapResolution = 0 },
		"bounds":       func(c *Config) { c.MapBounds = spatial.Bounds{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

			_, err = NewCoordinator(cfg)
			assert.Error(t, err)
		})
	}
}

func TestZeroDecayRateAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeatDecayRatePerMinute = 0
	assert.NoError(t, cfg.Validate())
}
