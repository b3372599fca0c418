package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/beaconhq/beacon/internal/payload"
)

func entry(clientID string) Entry {
	return Entry{
		Payload:    payload.Payload{ClientID: clientID},
		EnqueuedAt: time.Now().UTC(),
	}
}

func clientIDs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Payload.ClientID
	}
	return out
}

func TestEnqueueFIFOOrder(t *testing.T) {
	q := New(10)
	for i := 0; i < 3; i++ {
		if evicted := q.Enqueue(entry(fmt.Sprintf("c%d", i))); evicted {
			t.Errorf("Enqueue(%d) evicted below capacity", i)
		}
	}

	got := clientIDs(q.Snapshot())
	want := []string{"c0", "c1", "c2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order = %v, want %v", got, want)
			break
		}
	}
}

func TestEnqueueCapsAtCapacityDroppingOldest(t *testing.T) {
	q := New(DefaultCapacity)
	for i := 0; i < DefaultCapacity; i++ {
		q.Enqueue(entry(fmt.Sprintf("c%d", i)))
	}
	if q.Size() != DefaultCapacity {
		t.Fatalf("Size() = %d, want %d", q.Size(), DefaultCapacity)
	}

	if !q.Enqueue(entry("c100")) {
		t.Error("Enqueue at capacity did not report an eviction")
	}
	if q.Size() != DefaultCapacity {
		t.Errorf("Size() = %d after overflow, want %d", q.Size(), DefaultCapacity)
	}

	snap := q.Snapshot()
	if snap[0].Payload.ClientID != "c1" {
		t.Errorf("oldest = %q, want c1 (c0 evicted)", snap[0].Payload.ClientID)
	}
	if snap[len(snap)-1].Payload.ClientID != "c100" {
		t.Errorf("newest = %q, want c100", snap[len(snap)-1].Payload.ClientID)
	}
}

func TestNewClampsCapacity(t *testing.T) {
	q := New(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		q.Enqueue(entry("c"))
	}
	if q.Size() != DefaultCapacity {
		t.Errorf("Size() = %d, want default capacity %d", q.Size(), DefaultCapacity)
	}
}

func TestDrainAllConsumesInOrder(t *testing.T) {
	q := New(10)
	for i := 0; i < 3; i++ {
		q.Enqueue(entry(fmt.Sprintf("c%d", i)))
	}

	var seen []string
	n := q.DrainAll(func(e Entry) bool {
		seen = append(seen, e.Payload.ClientID)
		return true
	})

	if n != 3 {
		t.Errorf("consumed = %d, want 3", n)
	}
	if q.Size() != 0 {
		t.Errorf("Size() = %d after full drain, want 0", q.Size())
	}
	want := []string{"c0", "c1", "c2"}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("drain order = %v, want %v", seen, want)
			break
		}
	}
}

func TestDrainAllKeepsUnconsumedEntries(t *testing.T) {
	q := New(10)
	for i := 0; i < 4; i++ {
		q.Enqueue(entry(fmt.Sprintf("c%d", i)))
	}

	n := q.DrainAll(func(e Entry) bool {
		return e.Payload.ClientID == "c1" || e.Payload.ClientID == "c3"
	})

	if n != 2 {
		t.Errorf("consumed = %d, want 2", n)
	}
	got := clientIDs(q.Snapshot())
	want := []string{"c0", "c2"}
	if len(got) != len(want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remaining = %v, want %v", got, want)
			break
		}
	}
}

func TestDrainAllKeepsEntriesEnqueuedDuringDrain(t *testing.T) {
	q := New(10)
	q.Enqueue(entry("c0"))
	q.Enqueue(entry("c1"))

	q.DrainAll(func(e Entry) bool {
		if e.Payload.ClientID == "c0" {
			q.Enqueue(entry("mid"))
		}
		return true
	})

	got := clientIDs(q.Snapshot())
	if len(got) != 1 || got[0] != "mid" {
		t.Errorf("remaining = %v, want [mid]", got)
	}
}

func TestDrainAllEvictionDuringDrain(t *testing.T) {
	q := New(3)
	q.Enqueue(entry("c0"))
	q.Enqueue(entry("c1"))
	q.Enqueue(entry("c2"))

	// The queue is full, so the mid-drain enqueue evicts c0. Nothing is
	// consumed; afterwards the evicted entry must stay gone and the new
	// entry must survive.
	q.DrainAll(func(e Entry) bool {
		if e.Payload.ClientID == "c0" {
			if !q.Enqueue(entry("new")) {
				t.Error("Enqueue on a full queue did not evict")
			}
		}
		return false
	})

	got := clientIDs(q.Snapshot())
	want := []string{"c1", "c2", "new"}
	if len(got) != len(want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remaining = %v, want %v", got, want)
			break
		}
	}
}

func TestDrainAllEvictionAndConsumptionDuringDrain(t *testing.T) {
	q := New(3)
	q.Enqueue(entry("c0"))
	q.Enqueue(entry("c1"))
	q.Enqueue(entry("c2"))

	// c0 is evicted by the mid-drain enqueue, c1 is consumed by the
	// handler; only c2 and the new entry remain.
	n := q.DrainAll(func(e Entry) bool {
		if e.Payload.ClientID == "c0" {
			q.Enqueue(entry("new"))
		}
		return e.Payload.ClientID == "c1"
	})

	if n != 1 {
		t.Errorf("consumed = %d, want 1", n)
	}
	got := clientIDs(q.Snapshot())
	want := []string{"c2", "new"}
	if len(got) != len(want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remaining = %v, want %v", got, want)
			break
		}
	}
}

func TestDrainAllEvictionsExceedSnapshot(t *testing.T) {
	q := New(2)
	q.Enqueue(entry("c0"))
	q.Enqueue(entry("c1"))

	// Three enqueues against a capacity-2 queue evict the whole snapshot
	// and then the first of the new entries.
	q.DrainAll(func(e Entry) bool {
		if e.Payload.ClientID == "c0" {
			q.Enqueue(entry("n0"))
			q.Enqueue(entry("n1"))
			q.Enqueue(entry("n2"))
		}
		return false
	})

	got := clientIDs(q.Snapshot())
	want := []string{"n1", "n2"}
	if len(got) != len(want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remaining = %v, want %v", got, want)
			break
		}
	}
}

func TestClear(t *testing.T) {
	q := New(10)
	q.Enqueue(entry("c0"))
	q.Enqueue(entry("c1"))

	if n := q.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if q.Size() != 0 {
		t.Errorf("Size() = %d after clear, want 0", q.Size())
	}
	if n := q.Clear(); n != 0 {
		t.Errorf("Clear() on empty queue = %d, want 0", n)
	}
}

func TestReplaceTruncatesOldest(t *testing.T) {
	q := New(3)
	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = entry(fmt.Sprintf("c%d", i))
	}
	q.Replace(entries)

	got := clientIDs(q.Snapshot())
	want := []string{"c2", "c3", "c4"}
	if len(got) != len(want) {
		t.Fatalf("after Replace = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("after Replace = %v, want %v", got, want)
			break
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	q := New(10)
	q.Enqueue(entry("c0"))

	snap := q.Snapshot()
	snap[0].Payload.ClientID = "mutated"

	if q.Snapshot()[0].Payload.ClientID != "c0" {
		t.Error("mutating a snapshot changed the queue")
	}
}
