package queue

import (
	"sync"
	"time"

	"github.com/beaconhq/beacon/internal/payload"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 100

// Entry is one undelivered payload waiting for a later drain.
type Entry struct {
	Payload    payload.Payload `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Queue is a bounded in-memory FIFO of undelivered payloads. When full, a new
// entry displaces the oldest; enqueue never blocks and never rejects.
//
// The queue is owned by a single delivery service. Access is serialized with
// a mutex because background validation and connectivity callbacks run on
// their own goroutines.
type Queue struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	// evictions counts head entries displaced by Enqueue, cumulatively.
	// DrainAll compares it before and after the handler pass to learn how
	// many snapshot entries no longer exist.
	evictions uint64
}

// New returns an empty queue. Capacities <= 0 fall back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity}
}

// Enqueue appends an entry, evicting the oldest if the queue is full. It
// reports whether an eviction happened.
func (q *Queue) Enqueue(e Entry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	evicted := false
	if len(q.entries) >= q.capacity {
		q.entries = q.entries[1:]
		q.evictions++
		evicted = true
	}
	q.entries = append(q.entries, e)
	return evicted
}

// DrainAll processes a snapshot of the queue in insertion order. The handler
// reports whether the entry is consumed (delivered, or terminally failed and
// dropped); consumed entries are removed, the rest stay queued in order.
// Entries enqueued while a drain is running are kept for the next drain.
// DrainAll is not reentrant.
func (q *Queue) DrainAll(handler func(Entry) bool) int {
	q.mu.Lock()
	snapshot := make([]Entry, len(q.entries))
	copy(snapshot, q.entries)
	evictionsAtSnapshot := q.evictions
	q.mu.Unlock()

	consumed := make([]bool, len(snapshot))
	n := 0
	for i, e := range snapshot {
		if handler(e) {
			consumed[i] = true
			n++
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	// The current slice is the snapshot minus the head entries evicted by
	// enqueues during the drain, plus entries appended after the snapshot.
	// The eviction counter says how many snapshot entries are gone; inferring
	// it from lengths alone is wrong when an enqueue against a full queue
	// leaves the length unchanged.
	skip := int(q.evictions - evictionsAtSnapshot)
	if skip > len(snapshot) {
		skip = len(snapshot)
	}
	start := len(snapshot) - skip
	if start > len(q.entries) {
		// A concurrent Clear or Replace shrank the queue under us; whatever
		// is left is newer than the snapshot.
		start = len(q.entries)
	}
	tail := q.entries[start:]
	kept := make([]Entry, 0, len(q.entries))
	for i := skip; i < len(snapshot); i++ {
		if !consumed[i] {
			kept = append(kept, snapshot[i])
		}
	}
	q.entries = append(kept, tail...)
	return n
}

// Size returns the number of queued entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear drops every queued entry and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	q.entries = nil
	return n
}

// Snapshot copies the current entries, oldest first. Used by the durable
// store to persist the queue.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Replace swaps in a previously persisted entry list, truncating to capacity
// by dropping the oldest entries.
func (q *Queue) Replace(entries []Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(entries) > q.capacity {
		entries = entries[len(entries)-q.capacity:]
	}
	q.entries = make([]Entry, len(entries))
	copy(q.entries, entries)
}
