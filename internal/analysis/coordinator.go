// Package analysis drives ingestion and periodic re-analysis of elimination
// events: heat grid, cluster index, hotspot ranking and camping detection.
package analysis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"hotspot-core/internal/camping"
	"hotspot-core/internal/cluster"
	"hotspot-core/internal/heatmap"
	"hotspot-core/internal/spatial"
)

// Coordinator owns the heat grid and the cluster index. One mutex guards both
// for the whole of an ingest or an analysis run; assignment and eviction must
// not interleave. Reporters and the event sink are called after the lock is
// released. Reporters see runs in increasing order; a run that lost the race
// to a newer one is not dispatched.
type Coordinator struct {
	mu sync.RWMutex

	dispatchMu     sync.Mutex
	lastDispatched int

	cfg       Config
	grid      *heatmap.Grid
	index     *cluster.Index
	raw       *RingBuffer
	now       func() time.Time
	sink      EventSink
	reporters []Reporter

	lastDecay time.Time
	lastRun   time.Time
	runs      int

	hotspots     []ClusterSummary
	campingSpots []ClusterSummary
	snapshot     heatmap.Snapshot
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(co *Coordinator) { co.now = now }
}

// WithEventSink sets the persistence collaborator.
func WithEventSink(sink EventSink) Option {
	return func(co *Coordinator) { co.sink = sink }
}

// WithReporter adds a reporting collaborator. May be given several times.
func WithReporter(r Reporter) Option {
	return func(co *Coordinator) { co.reporters = append(co.reporters, r) }
}

// NewCoordinator validates cfg and builds an empty engine.
func NewCoordinator(cfg Config, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := heatmap.NewGrid(cfg.HeatmapResolution, cfg.MapBounds, cfg.HeatDecayRatePerMinute)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	index, err := cluster.NewIndex(cfg.ClusterRadius, cfg.MaxClusters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	co := &Coordinator{
		cfg:   cfg,
		grid:  grid,
		index: index,
		raw:   NewRingBuffer(cfg.MaxRawEventsRetained),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(co)
	}
	co.lastDecay = co.now()
	co.snapshot = grid.Snapshot()
	return co, nil
}

// Config returns the engine configuration.
func (co *Coordinator) Config() Config {
	return co.cfg
}

// RegisterEvent builds an event stamped with the current time and ingests it.
func (co *Coordinator) RegisterEvent(victimID, killerID string, pos, killerPos spatial.Vec3, weapon string, teamID int) cluster.EliminationEvent {
	ev := cluster.NewEliminationEvent(victimID, killerID, pos, killerPos, weapon, teamID, co.now())
	co.Ingest(ev)
	return ev
}

// Ingest adds an already built event and hands it to the event sink.
func (co *Coordinator) Ingest(ev cluster.EliminationEvent) {
	co.ingest(ev, true)
}

// Seed replays events from src without saving them again. Loader failures
// are logged and leave the engine empty.
func (co *Coordinator) Seed(ctx context.Context, src EventSource, n int) int {
	if src == nil || n <= 0 {
		return 0
	}
	events, err := src.LoadRecentEvents(ctx, n)
	if err != nil {
		log.Printf("analysis: seed failed: %v", err)
		return 0
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	for _, ev := range events {
		co.ingest(ev, false)
	}
	log.Printf("analysis: seeded %d events", len(events))
	return len(events)
}

func (co *Coordinator) ingest(ev cluster.EliminationEvent, persist bool) {
	report, ran := co.ingestLocked(ev)
	if persist && co.sink != nil {
		co.sink.SaveEvent(ev)
	}
	if ran {
		co.dispatch(report)
	}
}

func (co *Coordinator) ingestLocked(ev cluster.EliminationEvent) (Report, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()

	co.raw.Push(ev)
	co.grid.Rasterize(ev.Position)
	co.index.Assign(ev)

	if co.now().Sub(co.lastDecay) > AutoAnalysisInterval {
		return co.runLocked(), true
	}
	return Report{}, false
}

// RunAnalysis decays heat, re-ranks hotspots, reclassifies every cluster and
// publishes the result to reporters. It always runs to completion.
func (co *Coordinator) RunAnalysis() Report {
	co.mu.Lock()
	report := co.runLocked()
	co.mu.Unlock()

	co.dispatch(report)
	return report
}

func (co *Coordinator) runLocked() Report {
	now := co.now()
	elapsed := now.Sub(co.lastDecay).Minutes()
	co.grid.DecayAll(elapsed)
	co.index.DecayHeat(elapsed, co.cfg.HeatDecayRatePerMinute)
	co.lastDecay = now

	params := camping.Params{
		Window:        co.cfg.CampingTimeWindow,
		MinKills:      co.cfg.CampingMinKillsInWindow,
		MaxMoveRadius: co.cfg.CampingMaxMovementRadius,
	}

	clusters := co.index.Clusters()
	var eligible []*cluster.Cluster
	campingSpots := make([]ClusterSummary, 0)
	findings := make(map[uint64]*camping.Finding)
	for _, c := range clusters {
		if f, ok := camping.Detect(c, params); ok {
			c.IsCamping = true
			findings[c.ID] = &f
		} else {
			c.IsCamping = false
		}
		if c.Count() >= co.cfg.MinDeathsForHotspot {
			eligible = append(eligible, c)
		}
	}
	for _, c := range clusters {
		if c.IsCamping {
			campingSpots = append(campingSpots, summarize(c, findings[c.ID]))
		}
	}

	// stable: equal counts keep insertion order
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Count() > eligible[j].Count()
	})
	hotspots := make([]ClusterSummary, 0, len(eligible))
	for _, c := range eligible {
		hotspots = append(hotspots, summarize(c, findings[c.ID]))
	}

	co.hotspots = hotspots
	co.campingSpots = campingSpots
	co.snapshot = co.grid.Snapshot()
	co.lastRun = now
	co.runs++

	log.Printf("analysis: run %d: %d clusters, %d hotspots, %d camping spots",
		co.runs, len(clusters), len(hotspots), len(campingSpots))

	return Report{
		Run:          co.runs,
		RunAt:        now,
		Hotspots:     append([]ClusterSummary(nil), hotspots...),
		CampingSpots: append([]ClusterSummary(nil), campingSpots...),
		TotalEvents:  co.raw.Total(),
		ClusterCount: len(clusters),
		Heatmap:      co.snapshot,
	}
}

func (co *Coordinator) dispatch(r Report) {
	co.dispatchMu.Lock()
	defer co.dispatchMu.Unlock()
	if r.Run <= co.lastDispatched {
		log.Printf("analysis: run %d superseded by run %d, not reported", r.Run, co.lastDispatched)
		return
	}
	co.lastDispatched = r.Run
	for _, rep := range co.reporters {
		func() {
			defer func() {
				if p := recover(); p != nil {
					log.Printf("analysis: reporter panic: %v", p)
				}
			}()
			rep.Report(r)
		}()
	}
}

// GetHotspots returns up to maxCount hotspots from the latest run, largest
// first. Non-positive maxCount means DefaultHotspotLimit.
func (co *Coordinator) GetHotspots(maxCount int) []ClusterSummary {
	if maxCount <= 0 {
		maxCount = DefaultHotspotLimit
	}
	co.mu.RLock()
	defer co.mu.RUnlock()
	if maxCount > len(co.hotspots) {
		maxCount = len(co.hotspots)
	}
	return append([]ClusterSummary(nil), co.hotspots[:maxCount]...)
}

// GetCampingSpots returns clusters classified as camping in the latest run.
func (co *Coordinator) GetCampingSpots() []ClusterSummary {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return append([]ClusterSummary(nil), co.campingSpots...)
}

// GetHeatmapSnapshot returns a copy of the grid taken at the latest run.
func (co *Coordinator) GetHeatmapSnapshot() heatmap.Snapshot {
	co.mu.RLock()
	defer co.mu.RUnlock()
	out := make(heatmap.Snapshot, len(co.snapshot))
	for i, row := range co.snapshot {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// LastRun returns the time of the latest analysis run (zero before the first).
func (co *Coordinator) LastRun() time.Time {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.lastRun
}

// RecentEvents returns up to n retained events, oldest first.
func (co *Coordinator) RecentEvents(n int) []cluster.EliminationEvent {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.raw.Last(n)
}

// Stats returns engine counters.
func (co *Coordinator) Stats() Stats {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return Stats{
		LastRun:        co.lastRun,
		Runs:           co.runs,
		TotalEvents:    co.raw.Total(),
		RetainedEvents: co.raw.Len(),
		Clusters:       co.index.Len(),
		Evictions:      co.index.Evictions(),
		Hotspots:       len(co.hotspots),
		CampingSpots:   len(co.campingSpots),
	}
}
