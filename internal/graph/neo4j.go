// Package graph mirrors camping detections into Neo4j as
// (:Player)-[:CAMPED]->(:Spot) relationships.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jWriter handles communication with Neo4j.
type Neo4jWriter struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jWriter connects and verifies connectivity.
func NewNeo4jWriter(ctx context.Context, uri, user, password string) (*Neo4jWriter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver creation failed: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity test failed: %w", err)
	}
	return &Neo4jWriter{driver: driver, database: "neo4j"}, nil
}

const mergeCampingQuery = `
UNWIND $edges AS edge
MERGE (p:Player {id: edge.killer_id})
MERGE (s:Spot {id: edge.spot_id})
ON CREATE SET s.map_id = edge.map_id, s.cluster_id = edge.cluster_id
SET s.x = edge.x, s.y = edge.y, s.z = edge.z
MERGE (p)-[c:CAMPED]->(s)
ON CREATE SET c.count = 0
SET c.count = c.count + 1,
    c.kills = edge.kills,
    c.last_seen = edge.last_seen,
    c.weapon = edge.weapon
`

// WriteEdges merges the edges in one write transaction.
func (n *Neo4jWriter) WriteEdges(ctx context.Context, edges []CampingEdge) error {
	if len(edges) == 0 {
		return nil
	}
	params := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		params = append(params, e.params())
	}

	session := n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, mergeCampingQuery, map[string]any{"edges": params})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("merge camping edges: %w", err)
	}
	return nil
}

// CamperStat aggregates CAMPED relationships of one player.
type CamperStat struct {
	PlayerID   string    `json:"player_id"`
	Spots      int64     `json:"spots"`
	Detections int64     `json:"detections"`
	LastSeen   time.Time `json:"last_seen"`
}

// TopCampers returns players ordered by number of camping detections.
func (n *Neo4jWriter) TopCampers(ctx context.Context, limit int) ([]CamperStat, error) {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, `
			MATCH (p:Player)-[c:CAMPED]->(s:Spot)
			RETURN p.id AS player, count(DISTINCT s) AS spots, sum(c.count) AS detections, max(c.last_seen) AS last_seen
			ORDER BY detections DESC, player ASC
			LIMIT $limit
		`, map[string]any{"limit": limit})
		if err != nil {
			return nil, fmt.Errorf("failed to execute query: %w", err)
		}

		var stats []CamperStat
		for records.Next(ctx) {
			record := records.Record()
			var st CamperStat
			if v, ok := record.Get("player"); ok {
				st.PlayerID, _ = v.(string)
			}
			if v, ok := record.Get("spots"); ok {
				st.Spots, _ = v.(int64)
			}
			if v, ok := record.Get("detections"); ok {
				st.Detections, _ = v.(int64)
			}
			if v, ok := record.Get("last_seen"); ok {
				if ms, ok := v.(int64); ok {
					st.LastSeen = time.UnixMilli(ms).UTC()
				}
			}
			stats = append(stats, st)
		}
		return stats, records.Err()
	})
	if err != nil {
		return nil, err
	}

	stats, ok := result.([]CamperStat)
	if !ok {
		return nil, fmt.Errorf("failed to convert result to camper stats")
	}
	return stats, nil
}

// Close closes the driver.
func (n *Neo4jWriter) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}
