package analysis

import (
	"errors"
	"fmt"
	"time"

	"hotspot-core/internal/spatial"
)

// ErrInvalidConfig wraps every configuration rejection.
var ErrInvalidConfig = errors.New("invalid analysis config")

// AutoAnalysisInterval forces a run from Ingest when the last run is older
// than this, covering bursts between scheduled ticks.
const AutoAnalysisInterval = 5 * time.Minute

// DefaultHotspotLimit is used by GetHotspots for non-positive counts.
const DefaultHotspotLimit = 10

// Config is fixed for the lifetime of a Coordinator.
type Config struct {
	ClusterRadius            float64
	MinDeathsForHotspot      int
	CampingTimeWindow        time.Duration
	CampingMinKillsInWindow  int
	CampingMaxMovementRadius float64
	HeatDecayRatePerMinute   float64
	MaxClusters              int
	MaxRawEventsRetained     int

	HeatmapResolution int
	MapBounds         spatial.Bounds
}

// DefaultConfig returns values suited to a mid-sized map measured in metres.
func DefaultConfig() Config {
	return Config{
		ClusterRadius:            50,
		MinDeathsForHotspot:      5,
		CampingTimeWindow:        300 * time.Second,
		CampingMinKillsInWindow:  3,
		CampingMaxMovementRadius: 15,
		HeatDecayRatePerMinute:   0.1,
		MaxClusters:              500,
		MaxRawEventsRetained:     10000,
		HeatmapResolution:        100,
		MapBounds: spatial.Bounds{
			Min: spatial.Vec3{X: -4000, Y: -4000, Z: -1000},
			Max: spatial.Vec3{X: 4000, Y: 4000, Z: 1000},
		},
	}
}

// Validate rejects values that would otherwise have to be clamped.
func (c Config) Validate() error {
	switch {
	case c.ClusterRadius <= 0:
		return fmt.Errorf("%w: cluster radius must be positive, got %g", ErrInvalidConfig, c.ClusterRadius)
	case c.MinDeathsForHotspot <= 0:
		return fmt.Errorf("%w: min deaths for hotspot must be positive, got %d", ErrInvalidConfig, c.MinDeathsForHotspot)
	case c.CampingTimeWindow <= 0:
		return fmt.Errorf("%w: camping time window must be positive, got %s", ErrInvalidConfig, c.CampingTimeWindow)
	case c.CampingMinKillsInWindow <= 0:
		return fmt.Errorf("%w: camping min kills must be positive, got %d", ErrInvalidConfig, c.CampingMinKillsInWindow)
	case c.CampingMaxMovementRadius <= 0:
		return fmt.Errorf("%w: camping movement radius must be positive, got %g", ErrInvalidConfig, c.CampingMaxMovementRadius)
	case c.HeatDecayRatePerMinute < 0:
		return fmt.Errorf("%w: heat decay rate must not be negative, got %g", ErrInvalidConfig, c.HeatDecayRatePerMinute)
	case c.MaxClusters <= 0:
		return fmt.Errorf("%w: max clusters must be positive, got %d", ErrInvalidConfig, c.MaxClusters)
	case c.MaxRawEventsRetained <= 0:
		return fmt.Errorf("%w: max raw events must be positive, got %d", ErrInvalidConfig, c.MaxRawEventsRetained)
	case c.HeatmapResolution <= 0:
		return fmt.Errorf("%w: heatmap resolution must be positive, got %d", ErrInvalidConfig, c.HeatmapResolution)
	}
	if err := c.MapBounds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
