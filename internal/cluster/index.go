package cluster

import (
	"errors"
	"fmt"

	"hotspot-core/internal/heatmap"
	"hotspot-core/internal/spatial"
)

// ErrInvalidIndex is returned for non-positive radius or capacity.
var ErrInvalidIndex = errors.New("invalid cluster index")

// Index owns the bounded, insertion-ordered set of clusters.
//
// Routing is first-match: an event joins the earliest created cluster whose
// current centroid is within radius, not the nearest one. The radius bounds
// the distance at assignment time only; as a centroid drifts, older members
// may end up farther than radius from it.
type Index struct {
	clusters    []*Cluster
	radius      float64
	maxClusters int
	nextID      uint64
	evictions   int
}

// NewIndex creates an empty index.
func NewIndex(radius float64, maxClusters int) (*Index, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius %g", ErrInvalidIndex, radius)
	}
	if maxClusters <= 0 {
		return nil, fmt.Errorf("%w: max clusters %d", ErrInvalidIndex, maxClusters)
	}
	return &Index{
		clusters:    make([]*Cluster, 0, maxClusters),
		radius:      radius,
		maxClusters: maxClusters,
	}, nil
}

// Assign routes ev to a cluster and returns it. The returned cluster may
// already be evicted if it was the least recently updated one.
func (ix *Index) Assign(ev EliminationEvent) *Cluster {
	target := ix.firstMatch(ev.Position)
	if target == nil {
		ix.nextID++
		target = newCluster(ix.nextID, ev)
		ix.clusters = append(ix.clusters, target)
	}
	target.add(ev)

	if len(ix.clusters) > ix.maxClusters {
		ix.evictOldest()
	}
	return target
}

func (ix *Index) firstMatch(p spatial.Vec3) *Cluster {
	for _, c := range ix.clusters {
		if spatial.DistanceBetween(c.Center, p) <= ix.radius {
			return c
		}
	}
	return nil
}

// evictOldest drops the cluster with the smallest LastUpdate; ties go to the
// one earliest in order.
func (ix *Index) evictOldest() {
	oldest := 0
	for i, c := range ix.clusters {
		if c.LastUpdate.Before(ix.clusters[oldest].LastUpdate) {
			oldest = i
		}
	}
	copy(ix.clusters[oldest:], ix.clusters[oldest+1:])
	ix.clusters[len(ix.clusters)-1] = nil
	ix.clusters = ix.clusters[:len(ix.clusters)-1]
	ix.evictions++
}

// DecayHeat applies the heat grid decay formula to every cluster.
func (ix *Index) DecayHeat(elapsedMinutes, ratePerMinute float64) {
	if elapsedMinutes <= 0 {
		return
	}
	k := heatmap.DecayFactor(ratePerMinute, elapsedMinutes)
	for _, c := range ix.clusters {
		c.Heat *= k
	}
}

// Clusters returns the clusters in insertion order. The slice is a copy; the
// clusters are not.
func (ix *Index) Clusters() []*Cluster {
	return append([]*Cluster(nil), ix.clusters...)
}

// Len returns the current cluster count.
func (ix *Index) Len() int {
	return len(ix.clusters)
}

// Evictions returns how many clusters were dropped for capacity.
func (ix *Index) Evictions() int {
	return ix.evictions
}

// Radius returns the assignment radius.
func (ix *Index) Radius() float64 {
	return ix.radius
}
