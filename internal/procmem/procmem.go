// Package procmem provides memory-usage snapshots of the current process.
package procmem

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	apperrors "github.com/acollet/memwatch/internal/errors"
)

const bytesPerMB = 1024 * 1024

// OptUint32 is an optional uint32 field. Valid reports whether Value is set.
type OptUint32 struct {
	Value uint32
	Valid bool
}

// OptFloat is an optional float64 field. Valid reports whether Value is set.
type OptFloat struct {
	Value float64
	Valid bool
}

// Snapshot is one immutable point-in-time memory reading. Snapshots are
// produced once per sampling tick and never mutated afterwards.
type Snapshot struct {
	// Timestamp carries Go's monotonic clock reading; elapsed time between
	// snapshots is computed with Sub.
	Timestamp time.Time
	// RSSMB is the resident set size in megabytes.
	RSSMB float64
	// VMSMB is the virtual memory size in megabytes.
	VMSMB float64
	// Percent is the process share of total system memory (0-100).
	Percent float64
	// Threads is the OS thread count of the process.
	Threads int
	// GCCycles is the completed GC cycle count, set when runtime stats are enabled.
	GCCycles OptUint32
	// HeapAllocMB is the live heap in megabytes, set when runtime stats are enabled.
	HeapAllocMB OptFloat
	// HeapPeakMB is the highest live heap the collector has observed,
	// set when runtime stats are enabled.
	HeapPeakMB OptFloat
}

// Collector reads memory snapshots of the current process via the OS process
// table, optionally enriched with Go runtime heap statistics.
type Collector struct {
	proc         *process.Process
	runtimeStats bool

	mu         sync.Mutex
	heapPeakMB float64
}

// NewCollector creates a collector bound to the current process.
// With runtimeStats enabled each snapshot also carries GC cycle count and
// live/peak heap sizes from runtime.ReadMemStats.
func NewCollector(runtimeStats bool) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, apperrors.WrapError(err, "opening current process")
	}
	return &Collector{proc: proc, runtimeStats: runtimeStats}, nil
}

// Snapshot takes one memory reading. RSS and VMS come from the process
// table; a failure there is returned as a SamplingError. Percent and thread
// count degrade to zero on error rather than failing the whole reading.
func (c *Collector) Snapshot() (Snapshot, error) {
	info, err := c.proc.MemoryInfo()
	if err != nil {
		return Snapshot{}, apperrors.SamplingError{Cause: err}
	}

	snap := Snapshot{
		Timestamp: time.Now(),
		RSSMB:     float64(info.RSS) / bytesPerMB,
		VMSMB:     float64(info.VMS) / bytesPerMB,
	}

	if pct, err := c.proc.MemoryPercent(); err == nil {
		snap.Percent = float64(pct)
	}
	if threads, err := c.proc.NumThreads(); err == nil {
		snap.Threads = int(threads)
	}

	if c.runtimeStats {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		heapMB := float64(ms.HeapAlloc) / bytesPerMB

		c.mu.Lock()
		if heapMB > c.heapPeakMB {
			c.heapPeakMB = heapMB
		}
		peak := c.heapPeakMB
		c.mu.Unlock()

		snap.GCCycles = OptUint32{Value: ms.NumGC, Valid: true}
		snap.HeapAllocMB = OptFloat{Value: heapMB, Valid: true}
		snap.HeapPeakMB = OptFloat{Value: peak, Valid: true}
	}

	return snap, nil
}

// CurrentRSS returns the resident set size in megabytes without touching
// any snapshot state.
func (c *Collector) CurrentRSS() (float64, error) {
	info, err := c.proc.MemoryInfo()
	if err != nil {
		return 0, apperrors.SamplingError{Cause: err}
	}
	return float64(info.RSS) / bytesPerMB, nil
}
