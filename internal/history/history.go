// Package history implements the bounded snapshot buffer behind the watcher.
package history

import (
	"github.com/acollet/memwatch/internal/procmem"

	apperrors "github.com/acollet/memwatch/internal/errors"
)

// DefaultCapacity is the snapshot capacity used when none is configured.
const DefaultCapacity = 100

// Buffer is a fixed-capacity circular buffer of snapshots. Pushing at
// capacity evicts the oldest entry, so the buffer always holds the most
// recent window in chronological order.
//
// Buffer is not safe for concurrent use; the owning watcher serializes
// access under its own lock.
type Buffer struct {
	data  []procmem.Snapshot
	head  int
	count int
}

// New creates a buffer with the given capacity. Capacity must be positive;
// anything else is a configuration error.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, apperrors.NewConfigError("history capacity must be positive, got %d", capacity)
	}
	return &Buffer{data: make([]procmem.Snapshot, capacity)}, nil
}

// Push adds a snapshot, overwriting the oldest if full. O(1).
func (b *Buffer) Push(s procmem.Snapshot) {
	b.data[b.head] = s
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// Len returns the number of stored snapshots.
func (b *Buffer) Len() int { return b.count }

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Last returns the most recent snapshot and whether one exists.
func (b *Buffer) Last() (procmem.Snapshot, bool) {
	if b.count == 0 {
		return procmem.Snapshot{}, false
	}
	idx := b.head - 1
	if idx < 0 {
		idx = len(b.data) - 1
	}
	return b.data[idx], true
}

// Snapshots returns the contents in chronological order (oldest first).
// The result is a copy; callers cannot mutate the buffer through it.
func (b *Buffer) Snapshots() []procmem.Snapshot {
	if b.count == 0 {
		return nil
	}
	result := make([]procmem.Snapshot, b.count)
	start := b.head - b.count
	if start < 0 {
		start += len(b.data)
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.data[(start+i)%len(b.data)]
	}
	return result
}

// Clear removes all snapshots without changing capacity.
func (b *Buffer) Clear() {
	b.head = 0
	b.count = 0
}
