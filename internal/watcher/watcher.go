// Package watcher implements the background memory monitor: a periodic
// sampling loop over a bounded snapshot history with leak analysis and
// callback dispatch on each completed cycle.
package watcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acollet/memwatch/internal/detector"
	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/history"
	"github.com/acollet/memwatch/internal/procmem"
	"github.com/acollet/memwatch/internal/report"
)

// Source supplies memory snapshots of the monitored process. The production
// implementation is procmem.Collector; tests substitute fakes.
type Source interface {
	// Snapshot returns one reading, or a transient error the watcher must
	// tolerate.
	Snapshot() (procmem.Snapshot, error)
	// CurrentRSS returns only the resident set size in megabytes.
	CurrentRSS() (float64, error)
}

// Config holds the watcher construction parameters.
type Config struct {
	// Interval is the time between snapshots. Required, must be positive.
	Interval time.Duration
	// ThresholdMB enables threshold reporting when positive.
	ThresholdMB float64
	// RuntimeStats enables Go runtime heap fields on each snapshot.
	RuntimeStats bool
	// MaxSnapshots caps the history buffer; zero means history.DefaultCapacity.
	MaxSnapshots int
	// Sensitivity tunes the leak detector; zero means detector.DefaultSensitivity.
	Sensitivity float64
	// Callback, when set, is invoked with the analysis result whenever a
	// completed cycle detects a leak. It runs on the sampling goroutine:
	// a slow callback stalls subsequent sampling.
	Callback func(detector.Result)
	// OnSample, when set, is invoked after every successful cycle with the
	// new snapshot and the cycle's analysis (zero Result with ok=false
	// while the window is still too small). Same goroutine caveat as
	// Callback. Feeds the metrics server and the TUI.
	OnSample func(snap procmem.Snapshot, result detector.Result, ok bool)
	// Source overrides the snapshot source; nil means a collector bound to
	// the current process.
	Source Source
	// Logger receives loop diagnostics; the zero value logs nowhere.
	Logger zerolog.Logger
}

// Watcher monitors the current process's memory in a background goroutine.
//
// The running flag and the history buffer are the only state shared between
// the caller and the sampling loop; both sit behind mu.
type Watcher struct {
	interval    time.Duration
	thresholdMB float64
	callback    func(detector.Result)
	onSample    func(procmem.Snapshot, detector.Result, bool)
	source      Source
	detector    *detector.Detector
	logger      zerolog.Logger

	mu         sync.Mutex
	buf        *history.Buffer
	running    bool
	startTime  time.Time
	stopCh     chan struct{}
	done       chan struct{}
	lastResult *detector.Result
}

// New creates a watcher from the given configuration. Interval and buffer
// capacity are validated before any state is created; a bad value returns
// a ConfigError.
func New(cfg Config) (*Watcher, error) {
	if cfg.Interval <= 0 {
		return nil, apperrors.NewConfigError("interval must be positive, got %s", cfg.Interval)
	}

	capacity := cfg.MaxSnapshots
	if capacity == 0 {
		capacity = history.DefaultCapacity
	}
	buf, err := history.New(capacity)
	if err != nil {
		return nil, err
	}

	source := cfg.Source
	if source == nil {
		source, err = procmem.NewCollector(cfg.RuntimeStats)
		if err != nil {
			return nil, err
		}
	}

	return &Watcher{
		interval:    cfg.Interval,
		thresholdMB: cfg.ThresholdMB,
		callback:    cfg.Callback,
		onSample:    cfg.OnSample,
		source:      source,
		detector:    detector.New(cfg.Sensitivity),
		logger:      cfg.Logger,
		buf:         buf,
	}, nil
}

// Start launches the sampling loop. Calling Start on a running watcher is a
// no-op; only one loop ever runs per watcher. Start never blocks.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true
	w.startTime = time.Now()
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})

	go w.run(w.stopCh, w.done)
}

// Stop signals the sampling loop and waits for it to exit, bounded by
// interval plus one second. An in-flight snapshot-and-analyze cycle always
// completes first; the loop is never killed. Stopping a watcher that is not
// running returns NotStartedError.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return apperrors.NotStartedError{}
	}
	w.running = false
	stopCh, done := w.stopCh, w.done
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-done:
	case <-time.After(w.interval + time.Second):
		w.logger.Warn().Msg("sampling loop did not stop within the join timeout")
	}
	return nil
}

// Running reports whether the sampling loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run is the sampling loop. One cycle executes immediately, then the loop
// waits out the interval with a timer selected against the stop channel, so
// Stop returns as soon as the current cycle finishes.
func (w *Watcher) run(stopCh, done chan struct{}) {
	defer close(done)

	for {
		w.cycle()

		timer := time.NewTimer(w.interval)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// cycle performs one snapshot-push-analyze-dispatch pass. Every failure mode
// is contained here: a failed cycle is logged and skipped, never fatal to
// the loop.
func (w *Watcher) cycle() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("panic", fmt.Sprint(r)).Msg("sampling cycle panicked, continuing")
		}
	}()

	snap, err := w.source.Snapshot()
	if err != nil {
		// No retry: the next cycle is the retry.
		w.logger.Error().Err(err).Msg("snapshot failed, skipping cycle")
		return
	}

	w.mu.Lock()
	w.buf.Push(snap)
	snaps := w.buf.Snapshots()
	w.mu.Unlock()

	var result detector.Result
	analyzed := len(snaps) >= 3
	if analyzed {
		result = w.detector.Analyze(snaps)

		w.mu.Lock()
		res := result
		w.lastResult = &res
		w.mu.Unlock()

		if result.LeakDetected {
			w.logger.Warn().
				Float64("growth_rate_mb_per_min", result.GrowthRateMBPerMin).
				Float64("current_memory_mb", result.CurrentMemoryMB).
				Str("severity", string(result.Severity)).
				Msg("memory leak suspected")
			if w.callback != nil {
				w.callback(result)
			}
		}
	}

	if w.onSample != nil {
		w.onSample(snap, result, analyzed)
	}
}

// CurrentMemory queries the snapshot source directly and returns the
// resident set size in megabytes. It is independent of the sampling loop
// and works whether or not the watcher is running.
func (w *Watcher) CurrentMemory() (float64, error) {
	return w.source.CurrentRSS()
}

// Snapshots returns a chronological copy of the history buffer.
func (w *Watcher) Snapshots() []procmem.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Snapshots()
}

// LastResult returns the most recent analysis result, if any cycle has
// analyzed yet.
func (w *Watcher) LastResult() (detector.Result, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastResult == nil {
		return detector.Result{}, false
	}
	return *w.lastResult, true
}

// ClearSnapshots empties the history buffer without affecting the running
// state.
func (w *Watcher) ClearSnapshots() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Clear()
	w.lastResult = nil
}

// Report folds the current history and the detector into a summary report.
func (w *Watcher) Report() report.Report {
	w.mu.Lock()
	snaps := w.buf.Snapshots()
	start := w.startTime
	w.mu.Unlock()

	return report.Build(snaps, start, w.detector, w.thresholdMB)
}
