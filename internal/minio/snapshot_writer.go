// internal/minio/snapshot_writer.go

package minio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"hotspot-core/internal/analysis"
)

const reportPrefix = "reports/"

// snapshotDocument — формат объекта reports/<run_at>.json.
type snapshotDocument struct {
	analysis.Report
	Heatmap [][]float64 `json:"heatmap"`
}

// SnapshotWriter сохраняет каждый отчёт анализа вместе с тепловой картой.
type SnapshotWriter struct {
	client ClientInterface
	bucket string
	queue  chan analysis.Report
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSnapshotWriter запускает фоновую запись отчётов.
func NewSnapshotWriter(client ClientInterface, bucket string) *SnapshotWriter {
	w := &SnapshotWriter{
		client: client,
		bucket: bucket,
		queue:  make(chan analysis.Report, 16),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// ReportKey — ключ объекта для отчёта.
func ReportKey(r analysis.Report) string {
	return reportPrefix + r.RunAt.UTC().Format("20060102T150405.000000000Z") + ".json"
}

// Report реализует analysis.Reporter. Если очередь занята, отчёт пропускается.
func (w *SnapshotWriter) Report(r analysis.Report) {
	select {
	case w.queue <- r:
	default:
		log.Printf("minio: snapshot queue full, skipping report %s", r.RunAt.Format("15:04:05"))
	}
}

func (w *SnapshotWriter) loop() {
	defer w.wg.Done()
	for r := range w.queue {
		if err := w.write(r); err != nil {
			log.Printf("minio: write snapshot: %v", err)
		}
	}
}

func (w *SnapshotWriter) write(r analysis.Report) error {
	data, err := json.Marshal(snapshotDocument{Report: r, Heatmap: [][]float64(r.Heatmap)})
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return w.client.PutObject(w.bucket, ReportKey(r), bytes.NewReader(data), int64(len(data)))
}

// Close дописывает очередь.
func (w *SnapshotWriter) Close() {
	w.once.Do(func() { close(w.queue) })
	w.wg.Wait()
}
