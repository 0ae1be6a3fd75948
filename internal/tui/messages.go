package tui

import (
	"time"

	"github.com/acollet/memwatch/internal/detector"
	"github.com/acollet/memwatch/internal/procmem"
)

// SampleMsg carries one sampling cycle from the watcher goroutine.
type SampleMsg struct {
	Snapshot procmem.Snapshot
	Result   detector.Result
	// Analyzed is false while the history window is still too small for
	// leak analysis.
	Analyzed bool
}

// SysStatsMsg carries a system-wide resource snapshot for the header.
type SysStatsMsg struct {
	CPUPercent     float64
	MemPercent     float64
	MemAvailableMB float64
}

// TickMsg drives periodic redraws and system sampling.
type TickMsg time.Time

// ContextCancelledMsg signals that the parent context was canceled.
type ContextCancelledMsg struct {
	Err error
}
