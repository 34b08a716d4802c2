package graph

import (
	"context"
	"log"
	"sync"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/spatial"
)

const writeTimeout = 10 * time.Second

// EdgeWriter persists camping edges. Implemented by Neo4jWriter.
type EdgeWriter interface {
	WriteEdges(ctx context.Context, edges []CampingEdge) error
}

// CampingEdge is one (:Player)-[:CAMPED]->(:Spot) relationship update.
// Spots are keyed by SpotID (the cluster UID); ClusterID repeats after a
// restart and is stored for display only.
type CampingEdge struct {
	KillerID  string
	MapID     string
	SpotID    string
	ClusterID uint64
	Center    spatial.Vec3
	Kills     int
	Weapon    string
	LastSeen  time.Time
}

func (e CampingEdge) params() map[string]any {
	return map[string]any{
		"killer_id":  e.KillerID,
		"map_id":     e.MapID,
		"spot_id":    e.SpotID,
		"cluster_id": int64(e.ClusterID),
		"x":          e.Center.X,
		"y":          e.Center.Y,
		"z":          e.Center.Z,
		"kills":      int64(e.Kills),
		"weapon":     e.Weapon,
		"last_seen":  e.LastSeen.UnixMilli(),
	}
}

// EdgesFromReport converts the camping spots of a report for mapID. Spots
// without a qualifying run or a UID are skipped.
func EdgesFromReport(mapID string, r analysis.Report) []CampingEdge {
	edges := make([]CampingEdge, 0, len(r.CampingSpots))
	for _, spot := range r.CampingSpots {
		if spot.Camper == nil || spot.ClusterUID == "" {
			continue
		}
		edges = append(edges, CampingEdge{
			KillerID:  spot.Camper.KillerID,
			MapID:     mapID,
			SpotID:    spot.ClusterUID,
			ClusterID: spot.ClusterID,
			Center:    spot.Center,
			Kills:     spot.Camper.Kills,
			Weapon:    spot.TopWeapon,
			LastSeen:  spot.Camper.End,
		})
	}
	return edges
}

// CampingGraph is an analysis.Reporter writing camping spots through an
// EdgeWriter on its own goroutine.
type CampingGraph struct {
	writer EdgeWriter
	mapID  string
	queue  chan []CampingEdge
	wg     sync.WaitGroup
	once   sync.Once
}

// NewCampingGraph starts the writer goroutine. Edges are tagged with mapID.
func NewCampingGraph(writer EdgeWriter, mapID string) *CampingGraph {
	g := &CampingGraph{
		writer: writer,
		mapID:  mapID,
		queue:  make(chan []CampingEdge, 32),
	}
	g.wg.Add(1)
	go g.loop()
	return g
}

// Report implements analysis.Reporter.
func (g *CampingGraph) Report(r analysis.Report) {
	edges := EdgesFromReport(g.mapID, r)
	if len(edges) == 0 {
		return
	}
	select {
	case g.queue <- edges:
	default:
		log.Printf("graph: queue full, dropping %d camping edges", len(edges))
	}
}

func (g *CampingGraph) loop() {
	defer g.wg.Done()
	for edges := range g.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := g.writer.WriteEdges(ctx, edges); err != nil {
			log.Printf("graph: %v", err)
		}
		cancel()
	}
}

// Close writes what is queued and stops.
func (g *CampingGraph) Close() {
	g.once.Do(func() { close(g.queue) })
	g.wg.Wait()
}
