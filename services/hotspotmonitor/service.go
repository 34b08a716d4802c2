package hotspotmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"hotspot-core/internal/analysis"
	"hotspot-core/internal/eventbus"
	"hotspot-core/internal/graph"
	"hotspot-core/internal/logtail"
	"hotspot-core/internal/schema"
	"hotspot-core/internal/sqlitestore"
)

const (
	consumerGroup    = "hotspot-monitor-group"
	lifecycleTimeout = 5 * time.Second
)

type Config struct {
	HTTPAddr         string
	MapID            string
	AnalysisInterval time.Duration
	SeedEvents       int
	IngestJWTSecret  string
	IngestLogFile    string // JSON-lines kill log, пусто — отключено
	Analysis         analysis.Config
}

// Bus — то, что сервису нужно от шины событий. Реализуется *eventbus.EventBus.
type Bus interface {
	Publish(ctx context.Context, topic string, event eventbus.Event) error
	Subscribe(ctx context.Context, topic, groupID string, handler func(eventbus.Event))
	Close() error
}

// EventStore — журнал событий (MinIO или SQLite).
type EventStore interface {
	analysis.EventSink
	analysis.EventSource
}

// CampingHistory — история кемперства (SQLite).
type CampingHistory interface {
	Recent(ctx context.Context, limit int) ([]sqlitestore.CampingRecord, error)
	ForKiller(ctx context.Context, killerID string, limit int) ([]sqlitestore.CampingRecord, error)
}

// CamperRanking — агрегаты графа кемперов (Neo4j).
type CamperRanking interface {
	TopCampers(ctx context.Context, limit int) ([]graph.CamperStat, error)
}

// Deps — необязательные внешние компоненты; nil означает «отключено».
type Deps struct {
	Bus       Bus
	Store     EventStore
	Reporters []analysis.Reporter
	History   CampingHistory
	Campers   CamperRanking
}

type Service struct {
	co          *analysis.Coordinator
	bus         Bus
	store       EventStore
	history     CampingHistory
	campers     CamperRanking
	validator   *schema.Validator
	auth        *Authenticator
	httpServer  *HTTPServer
	wsServer    *WebSocketServer
	busReporter *BusReporter
	broadcast   chan []byte
	cfg         Config
	startedAt   time.Time

	workers     sync.WaitGroup
	broadcaster sync.WaitGroup
	stopOnce    sync.Once
}

func NewService(cfg Config, deps Deps) (*Service, error) {
	if cfg.AnalysisInterval <= 0 {
		cfg.AnalysisInterval = time.Minute
	}
	if cfg.MapID == "" {
		cfg.MapID = "default"
	}
	validator, err := schema.NewEliminationValidator()
	if err != nil {
		return nil, fmt.Errorf("elimination schema: %w", err)
	}

	s := &Service{
		bus:       deps.Bus,
		store:     deps.Store,
		history:   deps.History,
		campers:   deps.Campers,
		validator: validator,
		wsServer:  NewWebSocketServer(),
		broadcast: make(chan []byte, 100),
		cfg:       cfg,
	}
	if cfg.IngestJWTSecret != "" {
		s.auth = NewAuthenticator([]byte(cfg.IngestJWTSecret))
	}

	opts := []analysis.Option{analysis.WithReporter(newBroadcastReporter(s.broadcast))}
	if deps.Bus != nil {
		s.busReporter = NewBusReporter(deps.Bus, cfg.MapID)
		opts = append(opts, analysis.WithReporter(s.busReporter))
	}
	for _, r := range deps.Reporters {
		opts = append(opts, analysis.WithReporter(r))
	}
	if deps.Store != nil {
		opts = append(opts, analysis.WithEventSink(deps.Store))
	}

	co, err := analysis.NewCoordinator(cfg.Analysis, opts...)
	if err != nil {
		return nil, err
	}
	s.co = co
	s.wsServer.greeting = s.greetingMessage
	s.httpServer = NewHTTPServer(cfg.HTTPAddr)
	s.httpServer.RegisterRoutes(s, s.wsServer)
	return s, nil
}

// Coordinator открывает движок анализа (для инструментов и тестов).
func (s *Service) Coordinator() *analysis.Coordinator {
	return s.co
}

func (s *Service) Start(ctx context.Context) {
	log.Println("HotspotMonitor started. Initializing components...")
	s.startedAt = time.Now()

	// Восстанавливаем окно событий из журнала
	seeded := 0
	if s.store != nil && s.cfg.SeedEvents > 0 {
		seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		seeded = s.co.Seed(seedCtx, s.store, s.cfg.SeedEvents)
		cancel()
		if seeded > 0 {
			s.co.RunAnalysis()
		}
	}

	s.httpServer.Start()

	s.broadcaster.Add(1)
	go func() {
		defer s.broadcaster.Done()
		s.wsServer.BroadcastLoop(s.broadcast)
	}()

	if s.bus != nil {
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			s.bus.Subscribe(ctx, eventbus.TopicCombatEvents, consumerGroup, s.handleEvent)
		}()
	}

	if s.cfg.IngestLogFile != "" {
		tailer := logtail.New(s.cfg.IngestLogFile, logtail.DefaultPollInterval, s.ingestLine)
		s.workers.Add(1)
		go func() {
			defer s.workers.Done()
			if err := tailer.Run(ctx); err != nil {
				log.Printf("Kill log ingestion stopped: %v", err)
			}
		}()
	}

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.analysisLoop(ctx)
	}()

	s.publishLifecycle(eventbus.TypeMonitorStarted, map[string]interface{}{
		"seeded_events":     seeded,
		"analysis_interval": s.cfg.AnalysisInterval.String(),
	})
	log.Printf("HotspotMonitor running: map=%q interval=%s", s.cfg.MapID, s.cfg.AnalysisInterval)
}

// publishLifecycle отправляет в system_events запуск или остановку монитора.
func (s *Service) publishLifecycle(eventType string, payload map[string]interface{}) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	ev := eventbus.NewEvent(eventType, eventSource, s.cfg.MapID, payload)
	if err := s.bus.Publish(ctx, eventbus.TopicSystemEvents, ev); err != nil {
		log.Printf("Failed to publish %s: %v", eventType, err)
	}
}

// greetingMessage — текущее состояние для только что подключившегося дашборда.
func (s *Service) greetingMessage() []byte {
	msg, err := json.Marshal(map[string]interface{}{
		"type":          "snapshot",
		"last_run":      s.co.LastRun(),
		"hotspots":      s.co.GetHotspots(analysis.DefaultHotspotLimit),
		"camping_spots": s.co.GetCampingSpots(),
	})
	if err != nil {
		log.Printf("Failed to encode greeting: %v", err)
		return nil
	}
	return msg
}

// analysisLoop запускает анализ по таймеру до отмены ctx.
func (s *Service) analysisLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AnalysisInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.co.RunAnalysis()
		}
	}
}

// Stop ждёт завершения фоновых горутин; ctx, переданный в Start, должен быть
// уже отменён.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.httpServer.Stop()
		s.workers.Wait()
		if s.busReporter != nil {
			s.busReporter.Close()
		}
		if !s.startedAt.IsZero() {
			stats := s.co.Stats()
			s.publishLifecycle(eventbus.TypeMonitorStopped, map[string]interface{}{
				"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
				"total_events":   stats.TotalEvents,
				"runs":           stats.Runs,
			})
		}
		if s.bus != nil {
			if err := s.bus.Close(); err != nil {
				log.Printf("Event bus close error: %v", err)
			}
		}
		close(s.broadcast)
		s.broadcaster.Wait()
		s.wsServer.CloseAll()
	})
}
