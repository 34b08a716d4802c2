package analysis

import (
	"time"

	"hotspot-core/internal/camping"
	"hotspot-core/internal/cluster"
	"hotspot-core/internal/heatmap"
	"hotspot-core/internal/spatial"
)

// ClusterSummary is a detached copy of a cluster's state at analysis time.
type ClusterSummary struct {
	ClusterID         uint64         `json:"cluster_id" msgpack:"id"`
	ClusterUID        string         `json:"cluster_uid" msgpack:"uid"`
	Center            spatial.Vec3   `json:"center" msgpack:"center"`
	Radius            float64        `json:"radius" msgpack:"radius"`
	Count             int            `json:"count" msgpack:"count"`
	Heat              float64        `json:"heat" msgpack:"heat"`
	IsCamping         bool           `json:"is_camping" msgpack:"camping"`
	LastUpdate        time.Time      `json:"last_update" msgpack:"last_update"`
	UniqueKillerRatio float64        `json:"unique_killer_ratio" msgpack:"ukr"`
	TopKiller         string         `json:"top_killer,omitempty" msgpack:"top_killer"`
	TopWeapon         string         `json:"top_weapon,omitempty" msgpack:"top_weapon"`
	KillerCounts      map[string]int `json:"killer_counts" msgpack:"killers"`
	WeaponCounts      map[string]int `json:"weapon_counts" msgpack:"weapons"`
	Camper            *CampingRun    `json:"camper,omitempty" msgpack:"camper,omitempty"`
}

// CampingRun is the qualifying run of a camping spot.
type CampingRun struct {
	KillerID string    `json:"killer_id" msgpack:"killer_id"`
	Kills    int       `json:"kills" msgpack:"kills"`
	Start    time.Time `json:"start" msgpack:"start"`
	End      time.Time `json:"end" msgpack:"end"`
	Spread   float64   `json:"spread" msgpack:"spread"`
}

// Report is handed to reporters after every analysis run.
type Report struct {
	Run          int              `json:"run"`
	RunAt        time.Time        `json:"run_at"`
	Hotspots     []ClusterSummary `json:"hotspots"`
	CampingSpots []ClusterSummary `json:"camping_spots"`
	TotalEvents  int              `json:"total_events"`
	ClusterCount int              `json:"cluster_count"`
	Heatmap      heatmap.Snapshot `json:"-"`
}

// Stats is a cheap view of coordinator counters.
type Stats struct {
	LastRun        time.Time `json:"last_run"`
	Runs           int       `json:"runs"`
	TotalEvents    int       `json:"total_events"`
	RetainedEvents int       `json:"retained_events"`
	Clusters       int       `json:"clusters"`
	Evictions      int       `json:"evictions"`
	Hotspots       int       `json:"hotspots"`
	CampingSpots   int       `json:"camping_spots"`
}

func summarize(c *cluster.Cluster, finding *camping.Finding) ClusterSummary {
	topKiller, _ := c.TopKiller()
	topWeapon, _ := c.TopWeapon()
	s := ClusterSummary{
		ClusterID:         c.ID,
		ClusterUID:        c.UID,
		Center:            c.Center,
		Radius:            c.Radius,
		Count:             c.Count(),
		Heat:              c.Heat,
		IsCamping:         c.IsCamping,
		LastUpdate:        c.LastUpdate,
		UniqueKillerRatio: c.UniqueKillerRatio(),
		TopKiller:         topKiller,
		TopWeapon:         topWeapon,
		KillerCounts:      copyCounts(c.KillerCounts),
		WeaponCounts:      copyCounts(c.WeaponCounts),
	}
	if finding != nil {
		s.Camper = &CampingRun{
			KillerID: finding.KillerID,
			Kills:    finding.Kills,
			Start:    finding.Start,
			End:      finding.End,
			Spread:   finding.Spread,
		}
	}
	return s
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
