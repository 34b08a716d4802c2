package analysis

import "hotspot-core/internal/cluster"

// RingBuffer keeps the most recent events up to a fixed capacity.
type RingBuffer struct {
	buf   []cluster.EliminationEvent
	head  int // next write position
	size  int
	total int
}

// NewRingBuffer allocates a buffer with the given capacity (must be > 0).
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]cluster.EliminationEvent, capacity)}
}

// Push appends ev, overwriting the oldest entry when full.
func (r *RingBuffer) Push(ev cluster.EliminationEvent) {
	r.buf[r.head] = ev
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	r.total++
}

// Len returns the number of retained events.
func (r *RingBuffer) Len() int { return r.size }

// Total returns how many events were ever pushed.
func (r *RingBuffer) Total() int { return r.total }

// Last returns up to n most recent events, oldest first.
func (r *RingBuffer) Last(n int) []cluster.EliminationEvent {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]cluster.EliminationEvent, n)
	start := (r.head - n + len(r.buf)) % len(r.buf)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
