package hotspotmonitor

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/spatial"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxBodyBytes    = 64 << 10
	msgpackMIME     = "application/msgpack"
	defaultListSize = 50
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// queryInt читает положительный параметр; отсутствие — fallback.
func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// PostEliminationHandler принимает одно событие устранения.
func (s *Service) PostEliminationHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(raw) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	p, err := s.decodeElimination(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev := s.ingestPayload(p)
	if sub := subjectFrom(r.Context()); sub != "" {
		log.Printf("Elimination %s accepted from %s", ev.ID, sub)
	}
	writeJSON(w, http.StatusAccepted, ev)
}

func (s *Service) GetHotspotsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", analysis.DefaultHotspotLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_run": s.co.LastRun(),
		"hotspots": s.co.GetHotspots(limit),
	})
}

func (s *Service) GetCampingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_run":      s.co.LastRun(),
		"camping_spots": s.co.GetCampingSpots(),
	})
}

func (s *Service) GetCampingHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "camping history is not enabled")
		return
	}
	limit, ok := queryInt(r, "limit", defaultListSize)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	var (
		records interface{}
		err     error
	)
	if killer := r.URL.Query().Get("killer_id"); killer != "" {
		records, err = s.history.ForKiller(r.Context(), killer, limit)
	} else {
		records, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		log.Printf("Camping history query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (s *Service) GetTopCampersHandler(w http.ResponseWriter, r *http.Request) {
	if s.campers == nil {
		writeError(w, http.StatusServiceUnavailable, "camper graph is not enabled")
		return
	}
	limit, ok := queryInt(r, "limit", analysis.DefaultHotspotLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	stats, err := s.campers.TopCampers(r.Context(), limit)
	if err != nil {
		log.Printf("Top campers query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "graph query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"campers": stats})
}

// heatmapBody — представление тепловой карты для msgpack.
type heatmapBody struct {
	Resolution int            `msgpack:"resolution"`
	Bounds     spatial.Bounds `msgpack:"bounds"`
	Cells      [][]float64    `msgpack:"cells"`
}

func wantsMsgpack(r *http.Request) bool {
	return r.URL.Query().Get("format") == "msgpack" ||
		strings.Contains(r.Header.Get("Accept"), msgpackMIME)
}

// GetHeatmapHandler отдаёт снимок, сделанный последним анализом.
func (s *Service) GetHeatmapHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.co.GetHeatmapSnapshot()
	if !wantsMsgpack(r) {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	cfg := s.co.Config()
	data, err := msgpack.Marshal(heatmapBody{
		Resolution: cfg.HeatmapResolution,
		Bounds:     cfg.MapBounds,
		Cells:      [][]float64(snap),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode heatmap")
		return
	}
	w.Header().Set("Content-Type", msgpackMIME)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Service) GetRecentEventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultListSize)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": s.co.RecentEvents(limit)})
}

// RunAnalysisHandler запускает анализ вне расписания.
func (s *Service) RunAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.co.RunAnalysis())
}

type statusBody struct {
	analysis.Stats
	MapID            string  `json:"map_id"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	DashboardClients int     `json:"dashboard_clients"`
	KafkaEnabled     bool    `json:"kafka_enabled"`
	StoreEnabled     bool    `json:"store_enabled"`
	AuthEnabled      bool    `json:"auth_enabled"`
}

func (s *Service) StatusHandler(w http.ResponseWriter, r *http.Request) {
	var uptime float64
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt).Seconds()
	}
	writeJSON(w, http.StatusOK, statusBody{
		Stats:            s.co.Stats(),
		MapID:            s.cfg.MapID,
		UptimeSeconds:    uptime,
		DashboardClients: s.wsServer.ClientCount(),
		KafkaEnabled:     s.bus != nil,
		StoreEnabled:     s.store != nil,
		AuthEnabled:      s.auth != nil,
	})
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
