// internal/minio/event_store.go
//
// Журнал событий устранения в объектном хранилище.

package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"hotspot-core/internal/cluster"
)

const (
	eventPrefix      = "eliminations/"
	defaultQueueSize = 1024
)

// EventStore пишет каждое событие отдельным JSON-объектом. SaveEvent не
// блокирует: события уходят в очередь, запись идёт в своей горутине.
type EventStore struct {
	client  ClientInterface
	bucket  string
	queue   chan cluster.EliminationEvent
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewEventStore запускает фоновую запись. queueSize <= 0 — размер по умолчанию.
func NewEventStore(client ClientInterface, bucket string, queueSize int) *EventStore {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &EventStore{
		client: client,
		bucket: bucket,
		queue:  make(chan cluster.EliminationEvent, queueSize),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// EventKey — ключ объекта: eliminations/yyyy/mm/dd/<unixnano>-<id>.json.
// Лексикографический порядок ключей совпадает с хронологическим.
func EventKey(ev cluster.EliminationEvent) string {
	ts := ev.Timestamp.UTC()
	return fmt.Sprintf("%s%s/%019d-%s.json", eventPrefix, ts.Format("2006/01/02"), ts.UnixNano(), ev.ID)
}

// SaveEvent ставит событие в очередь. При переполнении событие теряется.
func (s *EventStore) SaveEvent(ev cluster.EliminationEvent) {
	select {
	case s.queue <- ev:
	default:
		if n := s.dropped.Add(1); n%100 == 1 {
			log.Printf("minio: event queue full, dropped %d events so far", n)
		}
	}
}

// Dropped — сколько событий потеряно из-за переполнения очереди.
func (s *EventStore) Dropped() int64 {
	return s.dropped.Load()
}

func (s *EventStore) writeLoop() {
	defer s.wg.Done()
	for ev := range s.queue {
		if err := s.put(ev); err != nil {
			log.Printf("minio: save event %s: %v", ev.ID, err)
		}
	}
}

func (s *EventStore) put(ev cluster.EliminationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.client.PutObject(s.bucket, EventKey(ev), bytes.NewReader(data), int64(len(data)))
}

// LoadRecentEvents возвращает не более n самых новых событий, старые первыми.
func (s *EventStore) LoadRecentEvents(ctx context.Context, n int) ([]cluster.EliminationEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	objects, err := s.client.ListObjects(s.bucket, eventPrefix)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	keys := make([]string, 0, len(objects))
	for _, o := range objects {
		if strings.HasSuffix(o.Key, ".json") {
			keys = append(keys, o.Key)
		}
	}
	sort.Strings(keys)
	if len(keys) > n {
		keys = keys[len(keys)-n:]
	}

	events := make([]cluster.EliminationEvent, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := s.client.GetObject(s.bucket, key)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var ev cluster.EliminationEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("minio: skip corrupt event %s: %v", key, err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close дописывает очередь и останавливает запись. После Close SaveEvent
// вызывать нельзя.
func (s *EventStore) Close() {
	s.once.Do(func() { close(s.queue) })
	s.wg.Wait()
}
