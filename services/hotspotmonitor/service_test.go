package hotspotmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/cluster"
	"hotspot-core/internal/eventbus"
	"hotspot-core/internal/graph"
	"hotspot-core/internal/spatial"
	"hotspot-core/internal/sqlitestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type fakeBus struct {
	mu        sync.Mutex
	published []eventbus.Event
	system    []eventbus.Event
	closed    bool
}

func (b *fakeBus) Publish(ctx context.Context, topic string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("publish after close")
	}
	switch topic {
	case eventbus.TopicAnalysisReports:
		b.published = append(b.published, event)
	case eventbus.TopicSystemEvents:
		b.system = append(b.system, event)
	default:
		return fmt.Errorf("unexpected topic %s", topic)
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic, groupID string, handler func(eventbus.Event)) {
	<-ctx.Done()
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) events() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.published...)
}

func (b *fakeBus) systemEvents() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventbus.Event(nil), b.system...)
}

type memStore struct {
	mu     sync.Mutex
	events []cluster.EliminationEvent
}

func (m *memStore) SaveEvent(ev cluster.EliminationEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *memStore) LoadRecentEvents(ctx context.Context, n int) ([]cluster.EliminationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) > n {
		return append([]cluster.EliminationEvent(nil), m.events[len(m.events)-n:]...), nil
	}
	return append([]cluster.EliminationEvent(nil), m.events...), nil
}

type staticHistory []sqlitestore.CampingRecord

func (h staticHistory) Recent(ctx context.Context, limit int) ([]sqlitestore.CampingRecord, error) {
	return h, nil
}

func (h staticHistory) ForKiller(ctx context.Context, killerID string, limit int) ([]sqlitestore.CampingRecord, error) {
	var out []sqlitestore.CampingRecord
	for _, r := range h {
		if r.KillerID == killerID {
			out = append(out, r)
		}
	}
	return out, nil
}

type staticCampers []graph.CamperStat

func (c staticCampers) TopCampers(ctx context.Context, limit int) ([]graph.CamperStat, error) {
	return c, nil
}

func testAnalysisConfig() analysis.Config {
	cfg := analysis.DefaultConfig()
	cfg.MinDeathsForHotspot = 3
	cfg.HeatmapResolution = 10
	cfg.MapBounds = spatial.Bounds{
		Min: spatial.Vec3{X: -1000, Y: -1000, Z: -100},
		Max: spatial.Vec3{X: 1000, Y: 1000, Z: 100},
	}
	return cfg
}

func newTestService(t *testing.T, cfg Config, deps Deps) (*Service, http.Handler) {
	t.Helper()
	if cfg.Analysis.ClusterRadius == 0 {
		cfg.Analysis = testAnalysisConfig()
	}
	s, err := NewService(cfg, deps)
	require.NoError(t, err)
	return s, s.httpServer.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func eliminationJSON(victim, killer string, x, y float64, at time.Time) string {
	return fmt.Sprintf(`{"victim_id":%q,"killer_id":%q,"weapon":"awp","team_id":1,"timestamp":%q,"position":{"x":%g,"y":%g,"z":0}}`,
		victim, killer, at.UTC().Format(time.RFC3339Nano), x, y)
}

func TestPostEliminationAccepted(t *testing.T) {
	store := &memStore{}
	_, h := newTestService(t, Config{}, Deps{Store: store})

	rec := do(t, h, http.MethodPost, "/v1/eliminations",
		`{"victim_id":"v1","killer_id":"k1","position":{"x":10,"y":20}}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var ev cluster.EliminationEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "k1", ev.KillerID)
	assert.Equal(t, 10.0, ev.Position.X)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)
	assert.Len(t, store.events, 1)

	rec = do(t, h, http.MethodGet, "/v1/events/recent?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ev.ID)
}

func TestPostEliminationRejectsInvalidPayload(t *testing.T) {
	s, h := newTestService(t, Config{}, Deps{})

	for _, body := range []string{
		`{"killer_id":"k1","position":{"x":10,"y":20}}`,
		`{"victim_id":"v1"}`,
		`{"victim_id":"v1","position":{"x":"far","y":2}}`,
		`not json`,
	} {
		rec := do(t, h, http.MethodPost, "/v1/eliminations", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	big := `{"victim_id":"v1","weapon":"` + strings.Repeat("a", maxBodyBytes) + `","position":{"x":1,"y":2}}`
	rec := do(t, h, http.MethodPost, "/v1/eliminations", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Empty(t, s.co.RecentEvents(10))
}

func TestIngestRequiresTokenWhenSecretSet(t *testing.T) {
	s, h := newTestService(t, Config{IngestJWTSecret: "s3cret"}, Deps{})
	body := `{"victim_id":"v1","position":{"x":1,"y":2}}`

	rec := do(t, h, http.MethodPost, "/v1/eliminations", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/eliminations", body, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := NewAuthenticator([]byte("other")).IssueToken("server-1", time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/v1/eliminations", body, map[string]string{"Authorization": "Bearer " + other})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := s.auth.IssueToken("server-1", time.Minute)
	require.NoError(t, err)
	rec = do(t, h, http.MethodPost, "/v1/eliminations", body, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// read endpoints stay open
	rec = do(t, h, http.MethodGet, "/v1/hotspots", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalysisRunRanksHotspotsAndCamping(t *testing.T) {
	bus := &fakeBus{}
	s, h := newTestService(t, Config{MapID: "dust"}, Deps{Bus: bus})

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 4; i++ {
		body := eliminationJSON(fmt.Sprintf("v%d", i), "sniper", 100+float64(i), 100, base.Add(time.Duration(i)*10*time.Second))
		rec := do(t, h, http.MethodPost, "/v1/eliminations", body, nil)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}
	// a small, separate cluster that is not a hotspot
	rec := do(t, h, http.MethodPost, "/v1/eliminations", eliminationJSON("w1", "rifler", -500, -500, base), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/analysis/run", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report analysis.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 5, report.TotalEvents)
	assert.Equal(t, 2, report.ClusterCount)
	require.Len(t, report.Hotspots, 1)
	assert.Equal(t, 4, report.Hotspots[0].Count)
	require.Len(t, report.CampingSpots, 1)
	require.NotNil(t, report.CampingSpots[0].Camper)
	assert.Equal(t, "sniper", report.CampingSpots[0].Camper.KillerID)

	rec = do(t, h, http.MethodGet, "/v1/hotspots?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hotspots struct {
		Hotspots []analysis.ClusterSummary `json:"hotspots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hotspots))
	require.Len(t, hotspots.Hotspots, 1)
	assert.True(t, hotspots.Hotspots[0].IsCamping)

	rec = do(t, h, http.MethodGet, "/v1/hotspots?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/camping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"killer_id":"sniper"`)

	// the bus reporter publishes asynchronously; Stop drains it
	s.Stop()
	assert.True(t, bus.closed)
	events := bus.events()
	require.Len(t, events, 2)
	assert.Equal(t, eventbus.TypeHotspotsRanked, events[0].EventType)
	assert.Equal(t, "dust", events[0].MapID)
	assert.Equal(t, eventbus.TypeCampingDetected, events[1].EventType)
	assert.Equal(t, "sniper", events[1].Payload["killer_id"])
	assert.Equal(t, report.CampingSpots[0].ClusterUID, events[1].Payload["cluster_uid"])
}

func TestHeatmapJSONAndMsgpack(t *testing.T) {
	s, h := newTestService(t, Config{}, Deps{})
	s.co.RegisterEvent("v1", "k1", spatial.Vec3{X: 999, Y: 999}, spatial.Vec3{}, "ak", 1)
	s.co.RunAnalysis()

	rec := do(t, h, http.MethodGet, "/v1/heatmap", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Heatmap [][]float64 `json:"heatmap"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Heatmap, 10)
	assert.InDelta(t, 1.0, body.Heatmap[9][9], 0.01)

	rec = do(t, h, http.MethodGet, "/v1/heatmap", "", map[string]string{"Accept": msgpackMIME})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgpackMIME, rec.Header().Get("Content-Type"))
	var packed heatmapBody
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, 10, packed.Resolution)
	assert.Equal(t, 1000.0, packed.Bounds.Max.X)
	assert.InDelta(t, 1.0, packed.Cells[9][9], 0.01)
}

func TestOptionalEndpointsWithoutBackends(t *testing.T) {
	_, h := newTestService(t, Config{}, Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/v1/camping/history", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/v1/campers", "", nil).Code)
}

func TestHistoryAndCampersEndpoints(t *testing.T) {
	history := staticHistory{
		{KillerID: "sniper", ClusterID: 1, Kills: 3},
		{KillerID: "camper", ClusterID: 2, Kills: 4},
	}
	campers := staticCampers{{PlayerID: "sniper", Spots: 2, Detections: 5}}
	_, h := newTestService(t, Config{}, Deps{History: history, Campers: campers})

	rec := do(t, h, http.MethodGet, "/v1/camping/history?killer_id=camper", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Records []sqlitestore.CampingRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Records, 1)
	assert.Equal(t, uint64(2), hist.Records[0].ClusterID)

	rec = do(t, h, http.MethodGet, "/v1/camping/history?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/campers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"player_id":"sniper"`)
}

func TestStatusAndHealth(t *testing.T) {
	_, h := newTestService(t, Config{MapID: "dust"}, Deps{Store: &memStore{}})

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "dust", st["map_id"])
	assert.Equal(t, true, st["store_enabled"])
	assert.Equal(t, false, st["kafka_enabled"])
	assert.Contains(t, st, "runs")
}

func TestHandleKafkaEvent(t *testing.T) {
	s, _ := newTestService(t, Config{MapID: "dust"}, Deps{})
	at := time.Now().Add(-time.Second).UTC()

	good := eventbus.NewEvent(eventbus.TypeElimination, "game-server", "dust", map[string]interface{}{
		"victim_id": "v1",
		"killer_id": "k1",
		"position":  map[string]interface{}{"x": 5.0, "y": 6.0},
	})
	good.Timestamp = at
	s.handleEvent(good)

	otherMap := good
	otherMap.MapID = "inferno"
	s.handleEvent(otherMap)

	otherType := eventbus.NewEvent(eventbus.TypeHotspotsRanked, "x", "dust", nil)
	s.handleEvent(otherType)

	invalid := eventbus.NewEvent(eventbus.TypeElimination, "game-server", "dust", map[string]interface{}{
		"killer_id": "k1",
	})
	s.handleEvent(invalid)

	events := s.co.RecentEvents(10)
	require.Len(t, events, 1)
	assert.Equal(t, good.EventID, events[0].ID)
	assert.True(t, events[0].Timestamp.Equal(at))
	assert.Equal(t, 5.0, events[0].Position.X)
}

func TestStartSeedsFromStoreAndStops(t *testing.T) {
	store := &memStore{}
	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		store.SaveEvent(cluster.NewEliminationEvent(fmt.Sprintf("v%d", i), "k", spatial.Vec3{X: 1, Y: 1}, spatial.Vec3{}, "ak", 0, base))
	}
	bus := &fakeBus{}
	s, _ := newTestService(t, Config{HTTPAddr: "127.0.0.1:0", MapID: "dust", SeedEvents: 100, AnalysisInterval: time.Hour}, Deps{Store: store, Bus: bus})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Len(t, s.co.GetHotspots(0), 1)
	// seeded events are not written back
	assert.Len(t, store.events, 3)

	cancel()
	s.Stop()

	system := bus.systemEvents()
	require.Len(t, system, 2)
	assert.Equal(t, eventbus.TypeMonitorStarted, system[0].EventType)
	assert.Equal(t, 3, system[0].Payload["seeded_events"])
	assert.Equal(t, "dust", system[0].MapID)
	assert.Equal(t, eventbus.TypeMonitorStopped, system[1].EventType)
	assert.Equal(t, 3, system[1].Payload["total_events"])
}

func TestBroadcastReporterDropsWhenFull(t *testing.T) {
	ch := make(chan []byte, 1)
	r := newBroadcastReporter(ch)
	r.Report(analysis.Report{RunAt: time.Now()})
	r.Report(analysis.Report{RunAt: time.Now()})
	require.Len(t, ch, 1)

	msg := <-ch
	assert.True(t, bytes.Contains(msg, []byte(`"type":"analysis_report"`)))
}

func TestIngestFromKillLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kills.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, _ := newTestService(t, Config{HTTPAddr: "127.0.0.1:0", IngestLogFile: path, AnalysisInterval: time.Hour}, Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Stop()
	}()
	time.Sleep(100 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(eliminationJSON("v1", "k1", 1, 2, time.Now()) + "\nnot json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool { return len(s.co.RecentEvents(10)) == 1 }, 3*time.Second, 20*time.Millisecond)
}
