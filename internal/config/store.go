// internal/config/store.go

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"sync"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/minio"
	"hotspot-core/internal/spatial"

	"gopkg.in/yaml.v3"
)

// Profile — профиль параметров анализа (полностью соответствует YAML).
// nil-поле означает «не задано»; явный 0 применяется и проверяется Validate.
type Profile struct {
	Name                string   `yaml:"name,omitempty" json:"name,omitempty"`
	ClusterRadius       *float64 `yaml:"cluster_radius,omitempty" json:"cluster_radius,omitempty"`
	MinDeathsForHotspot *int     `yaml:"min_deaths_for_hotspot,omitempty" json:"min_deaths_for_hotspot,omitempty"`
	Camping             struct {
		TimeWindow        string   `yaml:"time_window,omitempty" json:"time_window,omitempty"`
		MinKillsInWindow  *int     `yaml:"min_kills_in_window,omitempty" json:"min_kills_in_window,omitempty"`
		MaxMovementRadius *float64 `yaml:"max_movement_radius,omitempty" json:"max_movement_radius,omitempty"`
	} `yaml:"camping,omitempty" json:"camping,omitempty"`
	Heat struct {
		DecayRatePerMinute *float64 `yaml:"decay_rate_per_minute,omitempty" json:"decay_rate_per_minute,omitempty"`
		Resolution         *int     `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	} `yaml:"heat,omitempty" json:"heat,omitempty"`
	Limits struct {
		MaxClusters          *int `yaml:"max_clusters,omitempty" json:"max_clusters,omitempty"`
		MaxRawEventsRetained *int `yaml:"max_raw_events_retained,omitempty" json:"max_raw_events_retained,omitempty"`
	} `yaml:"limits,omitempty" json:"limits,omitempty"`
	MapBounds *spatial.Bounds `yaml:"map_bounds,omitempty" json:"map_bounds,omitempty"`
}

// ParseProfile разбирает YAML.
func ParseProfile(data []byte) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &profile, nil
}

// LoadProfileFile читает профиль с диска.
func LoadProfileFile(file string) (*Profile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", file, err)
	}
	p, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", file, err)
	}
	return p, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// AnalysisConfig накладывает профиль на analysis.DefaultConfig и проверяет результат.
func (p *Profile) AnalysisConfig() (analysis.Config, error) {
	cfg := analysis.DefaultConfig()
	if p == nil {
		return cfg, nil
	}
	setFloat(&cfg.ClusterRadius, p.ClusterRadius)
	setInt(&cfg.MinDeathsForHotspot, p.MinDeathsForHotspot)
	if p.Camping.TimeWindow != "" {
		d, err := time.ParseDuration(p.Camping.TimeWindow)
		if err != nil {
			return cfg, fmt.Errorf("%w: camping.time_window: %v", analysis.ErrInvalidConfig, err)
		}
		cfg.CampingTimeWindow = d
	}
	setInt(&cfg.CampingMinKillsInWindow, p.Camping.MinKillsInWindow)
	setFloat(&cfg.CampingMaxMovementRadius, p.Camping.MaxMovementRadius)
	setFloat(&cfg.HeatDecayRatePerMinute, p.Heat.DecayRatePerMinute)
	setInt(&cfg.HeatmapResolution, p.Heat.Resolution)
	setInt(&cfg.MaxClusters, p.Limits.MaxClusters)
	setInt(&cfg.MaxRawEventsRetained, p.Limits.MaxRawEventsRetained)
	if p.MapBounds != nil {
		cfg.MapBounds = *p.MapBounds
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Store управляет профилями анализа в MinIO.
type Store struct {
	minioClient minio.ClientInterface
	cache       map[string]*Profile
	cacheLock   sync.RWMutex
	bucket      string
}

// NewStore создаёт новый config store.
func NewStore(minioClient minio.ClientInterface, bucket string) *Store {
	return &Store{
		minioClient: minioClient,
		cache:       make(map[string]*Profile),
		bucket:      bucket,
	}
}

// GetProfile возвращает профиль по имени (с кэшированием).
func (s *Store) GetProfile(name string) (*Profile, error) {
	s.cacheLock.RLock()
	if p, ok := s.cache[name]; ok {
		s.cacheLock.RUnlock()
		return p, nil
	}
	s.cacheLock.RUnlock()

	key := path.Join("config", "analysis-profiles", name+".yaml")
	data, err := s.minioClient.GetObject(s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found: %w", name, err)
	}
	profile, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}

	s.cacheLock.Lock()
	s.cache[name] = profile
	s.cacheLock.Unlock()

	log.Printf("config: loaded profile %s from %s/%s", name, s.bucket, key)
	return profile, nil
}

// GetOverride возвращает переопределение для карты. Отсутствующий объект —
// (nil, nil); прочие ошибки MinIO возвращаются.
func (s *Store) GetOverride(mapID string) (*Profile, error) {
	key := path.Join("config", "analysis-overrides", mapID+".yaml")
	data, err := s.minioClient.GetObject(s.bucket, key)
	if errors.Is(err, minio.ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("override for %s: %w", mapID, err)
	}
	profile, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("invalid override for %s: %w", mapID, err)
	}
	return profile, nil
}

// Resolve возвращает профиль name с наложенным переопределением для mapID.
func (s *Store) Resolve(name, mapID string) (*Profile, error) {
	base, err := s.GetProfile(name)
	if err != nil {
		return nil, err
	}
	if mapID == "" {
		return base, nil
	}
	override, err := s.GetOverride(mapID)
	if err != nil {
		return nil, err
	}
	return MergeProfiles(base, override), nil
}

// mergeProfiles объединяет базовый профиль и переопределение.
// Заданные в переопределении поля (включая явный 0) заменяют базовые.
func mergeProfiles(base, override *Profile) *Profile {
	if override == nil {
		return base
	}
	result := *base

	if override.Name != "" {
		result.Name = override.Name
	}
	if override.ClusterRadius != nil {
		result.ClusterRadius = override.ClusterRadius
	}
	if override.MinDeathsForHotspot != nil {
		result.MinDeathsForHotspot = override.MinDeathsForHotspot
	}

	if override.Camping.TimeWindow != "" {
		result.Camping.TimeWindow = override.Camping.TimeWindow
	}
	if override.Camping.MinKillsInWindow != nil {
		result.Camping.MinKillsInWindow = override.Camping.MinKillsInWindow
	}
	if override.Camping.MaxMovementRadius != nil {
		result.Camping.MaxMovementRadius = override.Camping.MaxMovementRadius
	}

	if override.Heat.DecayRatePerMinute != nil {
		result.Heat.DecayRatePerMinute = override.Heat.DecayRatePerMinute
	}
	if override.Heat.Resolution != nil {
		result.Heat.Resolution = override.Heat.Resolution
	}

	if override.Limits.MaxClusters != nil {
		result.Limits.MaxClusters = override.Limits.MaxClusters
	}
	if override.Limits.MaxRawEventsRetained != nil {
		result.Limits.MaxRawEventsRetained = override.Limits.MaxRawEventsRetained
	}

	if override.MapBounds != nil {
		b := *override.MapBounds
		result.MapBounds = &b
	}
	return &result
}

// MergeProfiles объединяет базовый профиль и переопределение.
func MergeProfiles(base, override *Profile) *Profile {
	return mergeProfiles(base, override)
}
