package cluster

import (
	"sort"
	"time"

	"hotspot-core/internal/spatial"

	"github.com/google/uuid"
)

// Cluster is a growing group of events sharing a centroid within the index
// radius at assignment time. Membership only grows until the cluster is evicted.
// ID is the per-index sequence number; UID stays unique across processes.
type Cluster struct {
	ID           uint64
	UID          string
	Center       spatial.Vec3
	Members      []EliminationEvent
	Radius       float64
	LastUpdate   time.Time
	CreatedAt    time.Time
	KillerCounts map[string]int
	WeaponCounts map[string]int
	Heat         float64
	IsCamping    bool
}

func newCluster(id uint64, ev EliminationEvent) *Cluster {
	return &Cluster{
		ID:           id,
		UID:          uuid.NewString(),
		Center:       ev.Position,
		CreatedAt:    ev.Timestamp,
		KillerCounts: make(map[string]int),
		WeaponCounts: make(map[string]int),
	}
}

// add appends ev and recomputes the derived fields.
func (c *Cluster) add(ev EliminationEvent) {
	c.Members = append(c.Members, ev)

	positions := make([]spatial.Vec3, len(c.Members))
	for i, m := range c.Members {
		positions[i] = m.Position
	}
	c.Center = spatial.Mean(positions)
	c.Radius = spatial.MaxDistance(c.Center, positions)

	if ev.KillerID != "" {
		c.KillerCounts[ev.KillerID]++
	}
	if ev.Weapon != "" {
		c.WeaponCounts[ev.Weapon]++
	}
	c.Heat++
	c.LastUpdate = ev.Timestamp
}

// Count returns the number of member events.
func (c *Cluster) Count() int {
	return len(c.Members)
}

// UniqueKillers returns the number of distinct credited killers.
func (c *Cluster) UniqueKillers() int {
	return len(c.KillerCounts)
}

// UniqueKillerRatio is distinct killers over credited kills. A value near
// zero means few players account for most kills in the area. Returns 0 when
// the cluster has no credited kills.
func (c *Cluster) UniqueKillerRatio() float64 {
	credited := 0
	for _, n := range c.KillerCounts {
		credited += n
	}
	if credited == 0 {
		return 0
	}
	return float64(len(c.KillerCounts)) / float64(credited)
}

// TopKiller returns the killer with the most kills (ties broken by id).
func (c *Cluster) TopKiller() (string, int) {
	return topOf(c.KillerCounts)
}

// TopWeapon returns the most used weapon (ties broken by name).
func (c *Cluster) TopWeapon() (string, int) {
	return topOf(c.WeaponCounts)
}

func topOf(counts map[string]int) (string, int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestN := "", 0
	for _, k := range keys {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best, bestN
}
