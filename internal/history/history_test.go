package history

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/procmem"
)

// snap builds a snapshot whose RSS encodes its insertion order.
func snap(i int) procmem.Snapshot {
	return procmem.Snapshot{
		Timestamp: time.Unix(int64(1000+i), 0),
		RSSMB:     float64(i),
	}
}

func TestNew_RejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1, -100} {
		_, err := New(capacity)
		var cfgErr apperrors.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("New(%d) should return ConfigError, got %v", capacity, err)
		}
	}
}

func TestBuffer_PushBelowCapacity(t *testing.T) {
	b, err := New(10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 4; i++ {
		b.Push(snap(i))
	}

	if b.Len() != 4 {
		t.Errorf("Len() = %d, want 4", b.Len())
	}
	if b.Cap() != 10 {
		t.Errorf("Cap() = %d, want 10", b.Cap())
	}

	got := b.Snapshots()
	for i, s := range got {
		if s.RSSMB != float64(i) {
			t.Errorf("Snapshots()[%d].RSSMB = %f, want %d", i, s.RSSMB, i)
		}
	}
}

func TestBuffer_EvictsOldestAtCapacity(t *testing.T) {
	const capacity = 20
	b, err := New(capacity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Push capacity+5 snapshots; exactly the last `capacity` must remain.
	for i := 0; i < capacity+5; i++ {
		b.Push(snap(i))
	}

	if b.Len() != capacity {
		t.Fatalf("Len() = %d, want %d", b.Len(), capacity)
	}

	got := b.Snapshots()
	for i, s := range got {
		want := float64(i + 5)
		if s.RSSMB != want {
			t.Errorf("Snapshots()[%d].RSSMB = %f, want %f", i, s.RSSMB, want)
		}
	}

	// Chronological order must hold across the wrap point.
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("timestamps out of order at index %d", i)
		}
	}
}

func TestBuffer_Last(t *testing.T) {
	b, err := New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := b.Last(); ok {
		t.Error("Last() on empty buffer should report absence")
	}

	for i := 0; i < 5; i++ {
		b.Push(snap(i))
	}
	last, ok := b.Last()
	if !ok || last.RSSMB != 4 {
		t.Errorf("Last() = %+v, %v; want RSSMB=4", last, ok)
	}
}

func TestBuffer_SnapshotsIsACopy(t *testing.T) {
	b, err := New(5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.Push(snap(1))

	view := b.Snapshots()
	view[0].RSSMB = 999

	fresh := b.Snapshots()
	if fresh[0].RSSMB != 1 {
		t.Error("mutating the returned slice should not affect the buffer")
	}
}

func TestBuffer_Clear(t *testing.T) {
	b, err := New(5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 5; i++ {
		b.Push(snap(i))
	}

	b.Clear()

	if b.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", b.Len())
	}
	if b.Snapshots() != nil {
		t.Error("Snapshots() after Clear should be nil")
	}

	// Buffer remains usable after clearing.
	b.Push(snap(7))
	if b.Len() != 1 {
		t.Errorf("Len() after re-push = %d, want 1", b.Len())
	}
}
