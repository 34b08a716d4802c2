// Package camping flags clusters where one killer piles up kills from a
// near-fixed position within a short time window.
package camping

import (
	"sort"
	"time"

	"hotspot-core/internal/cluster"
	"hotspot-core/internal/spatial"
)

// Params controls classification.
type Params struct {
	Window        time.Duration
	MinKills      int
	MaxMoveRadius float64
}

// Finding describes the first qualifying run.
type Finding struct {
	KillerID string
	Kills    int
	Start    time.Time
	End      time.Time
	Spread   float64 // distance from the run reference to its extreme point
}

// Classify sets c.IsCamping and returns it.
func Classify(c *cluster.Cluster, p Params) bool {
	_, ok := Detect(c, p)
	c.IsCamping = ok
	return ok
}

// Detect searches every killer's kills for a run of exactly MinKills
// consecutive (by time) kills that spans at most Window and stays within
// MaxMoveRadius. Runs are count based, not time based. The first hit stops
// the search.
func Detect(c *cluster.Cluster, p Params) (Finding, bool) {
	if p.MinKills <= 0 {
		return Finding{}, false
	}
	byKiller, order := groupByKiller(c.Members)
	for _, killer := range order {
		kills := byKiller[killer]
		if len(kills) < p.MinKills {
			continue
		}
		sort.SliceStable(kills, func(i, j int) bool {
			return kills[i].Timestamp.Before(kills[j].Timestamp)
		})
		for start := 0; start+p.MinKills <= len(kills); start++ {
			run := kills[start : start+p.MinKills]
			first, last := run[0], run[len(run)-1]
			if last.Timestamp.Sub(first.Timestamp) > p.Window {
				continue
			}
			spread := boundedSpread(run)
			if spread <= p.MaxMoveRadius {
				return Finding{
					KillerID: killer,
					Kills:    p.MinKills,
					Start:    first.Timestamp,
					End:      last.Timestamp,
					Spread:   spread,
				}, true
			}
		}
	}
	return Finding{}, false
}

// groupByKiller skips environmental deaths and keeps first-seen killer order
// so results do not depend on map iteration.
func groupByKiller(members []cluster.EliminationEvent) (map[string][]cluster.EliminationEvent, []string) {
	byKiller := make(map[string][]cluster.EliminationEvent)
	var order []string
	for _, ev := range members {
		if ev.KillerID == "" {
			continue
		}
		if _, seen := byKiller[ev.KillerID]; !seen {
			order = append(order, ev.KillerID)
		}
		byKiller[ev.KillerID] = append(byKiller[ev.KillerID], ev)
	}
	return byKiller, order
}

// boundedSpread takes the first position of the run as reference, finds the
// position farthest from it and returns that distance. This approximates
// "all positions within R of each other": two points on opposite sides of the
// reference may be up to 2R apart and still pass.
func boundedSpread(run []cluster.EliminationEvent) float64 {
	ref := run[0].Position
	extreme := ref
	farthest := 0.0
	for _, ev := range run[1:] {
		if d := spatial.DistanceBetween(ref, ev.Position); d > farthest {
			farthest = d
			extreme = ev.Position
		}
	}
	return spatial.DistanceBetween(ref, extreme)
}
