package hotspotmonitor

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/eventbus"
)

const (
	eventSource      = "hotspot-monitor"
	publishTimeout   = 10 * time.Second
	reportedHotspots = analysis.DefaultHotspotLimit
)

// reportMessage — сообщение для дашбордов по WebSocket.
type reportMessage struct {
	Type   string          `json:"type"`
	Report analysis.Report `json:"report"`
}

func encodeReport(r analysis.Report) ([]byte, error) {
	return json.Marshal(reportMessage{Type: "analysis_report", Report: r})
}

// broadcastReporter отправляет каждый отчёт в канал WebSocket-рассылки.
type broadcastReporter struct {
	broadcast chan<- []byte
}

func newBroadcastReporter(broadcast chan<- []byte) *broadcastReporter {
	return &broadcastReporter{broadcast: broadcast}
}

func (b *broadcastReporter) Report(r analysis.Report) {
	msg, err := encodeReport(r)
	if err != nil {
		log.Printf("Failed to encode report: %v", err)
		return
	}
	select {
	case b.broadcast <- msg:
	default:
		log.Println("Broadcast channel full, report dropped")
	}
}

// BusReporter публикует результаты анализа в analysis_reports.
type BusReporter struct {
	bus   Bus
	mapID string
	queue chan analysis.Report
	wg    sync.WaitGroup
	once  sync.Once
}

func NewBusReporter(bus Bus, mapID string) *BusReporter {
	br := &BusReporter{
		bus:   bus,
		mapID: mapID,
		queue: make(chan analysis.Report, 16),
	}
	br.wg.Add(1)
	go br.loop()
	return br
}

// Report реализует analysis.Reporter.
func (br *BusReporter) Report(r analysis.Report) {
	select {
	case br.queue <- r:
	default:
		log.Println("Bus reporter queue full, report dropped")
	}
}

func (br *BusReporter) loop() {
	defer br.wg.Done()
	for r := range br.queue {
		for _, ev := range br.events(r) {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := br.bus.Publish(ctx, eventbus.TopicAnalysisReports, ev); err != nil {
				log.Printf("Failed to publish %s: %v", ev.EventType, err)
			}
			cancel()
		}
	}
}

// events строит одно событие рейтинга и по событию на каждое место кемперства.
func (br *BusReporter) events(r analysis.Report) []eventbus.Event {
	hotspots := r.Hotspots
	if len(hotspots) > reportedHotspots {
		hotspots = hotspots[:reportedHotspots]
	}
	ranked := eventbus.NewEvent(eventbus.TypeHotspotsRanked, eventSource, br.mapID, map[string]interface{}{
		"run_at":        r.RunAt,
		"total_events":  r.TotalEvents,
		"cluster_count": r.ClusterCount,
		"hotspots":      hotspots,
	})
	out := []eventbus.Event{normalize(ranked)}

	for _, spot := range r.CampingSpots {
		payload := map[string]interface{}{
			"run_at":      r.RunAt,
			"cluster_id":  spot.ClusterID,
			"cluster_uid": spot.ClusterUID,
			"center":      spot.Center,
			"count":       spot.Count,
		}
		if spot.Camper != nil {
			payload["killer_id"] = spot.Camper.KillerID
			payload["kills"] = spot.Camper.Kills
			payload["window_start"] = spot.Camper.Start
			payload["window_end"] = spot.Camper.End
		}
		out = append(out, normalize(eventbus.NewEvent(eventbus.TypeCampingDetected, eventSource, br.mapID, payload)))
	}
	return out
}

// normalize приводит Payload к JSON-типам, чтобы подписчики и тесты видели
// то же, что уходит в Kafka.
func normalize(ev eventbus.Event) eventbus.Event {
	if m, err := eventbus.ToPayload(ev.Payload); err == nil {
		ev.Payload = m
	}
	return ev
}

// Close дописывает очередь.
func (br *BusReporter) Close() {
	br.once.Do(func() { close(br.queue) })
	br.wg.Wait()
}
