package watcher

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acollet/memwatch/internal/detector"
	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/procmem"
)

// fakeSource serves scripted snapshots; once the script is exhausted it
// repeats the last entry. Safe for concurrent use with the sampling loop.
type fakeSource struct {
	mu     sync.Mutex
	script []procmem.Snapshot
	errs   []error
	calls  int
}

func (f *fakeSource) Snapshot() (procmem.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return procmem.Snapshot{}, f.errs[i]
	}
	if len(f.script) == 0 {
		return procmem.Snapshot{Timestamp: time.Now(), RSSMB: 100}, nil
	}
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	snap := f.script[i]
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	return snap, nil
}

func (f *fakeSource) CurrentRSS() (float64, error) {
	snap, err := f.Snapshot()
	return snap.RSSMB, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// growingSource emits a linear leak: start + step MB per call, with
// timestamps spaced apart so the growth rate is well defined.
func growingSource(start, stepMB float64, spacing time.Duration) *fakeSource {
	base := time.Now().Add(-time.Hour)
	script := make([]procmem.Snapshot, 200)
	for i := range script {
		script[i] = procmem.Snapshot{
			Timestamp: base.Add(time.Duration(i) * spacing),
			RSSMB:     start + float64(i)*stepMB,
		}
	}
	return &fakeSource{script: script}
}

func testConfig(src Source) Config {
	return Config{
		Interval: 5 * time.Millisecond,
		Source:   src,
		Logger:   zerolog.Nop(),
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNew_Validation(t *testing.T) {
	t.Run("zero interval", func(t *testing.T) {
		_, err := New(Config{})
		var cfgErr apperrors.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("New with zero interval = %v, want ConfigError", err)
		}
	})

	t.Run("negative capacity", func(t *testing.T) {
		cfg := testConfig(&fakeSource{})
		cfg.MaxSnapshots = -1
		if _, err := New(cfg); err == nil {
			t.Error("negative capacity should fail")
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		w, err := New(testConfig(&fakeSource{}))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if got := w.buf.Cap(); got != 100 {
			t.Errorf("default capacity = %d, want 100", got)
		}
		if w.detector.Sensitivity != detector.DefaultSensitivity {
			t.Errorf("default sensitivity = %f", w.detector.Sensitivity)
		}
	})
}

func TestWatcher_StartStopLifecycle(t *testing.T) {
	src := &fakeSource{}
	w, err := New(testConfig(src))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if w.Running() {
		t.Error("watcher should not run before Start")
	}

	w.Start()
	if !w.Running() {
		t.Error("watcher should run after Start")
	}

	waitFor(t, time.Second, func() bool { return src.callCount() >= 2 })

	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	if w.Running() {
		t.Error("watcher should not run after Stop")
	}

	// The loop joined: no further samples arrive.
	settled := src.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := src.callCount(); got != settled {
		t.Errorf("loop still sampling after Stop: %d -> %d", settled, got)
	}
}

func TestWatcher_StartIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	w, _ := New(testConfig(src))

	w.Start()
	w.Start()
	w.Start()
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return src.callCount() >= 3 })

	// A second loop would roughly double the sampling cadence; instead the
	// duplicate Starts must be no-ops. Snapshots from one loop arrive at
	// most once per interval, so after a settle window the count stays
	// near what a single loop produces.
	w.Stop()
	if !errorsIsNotStarted(w.Stop()) {
		t.Error("second Stop should report not running")
	}
}

func errorsIsNotStarted(err error) bool {
	var nse apperrors.NotStartedError
	return errors.As(err, &nse)
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, _ := New(testConfig(&fakeSource{}))

	err := w.Stop()
	if !errorsIsNotStarted(err) {
		t.Errorf("Stop on idle watcher = %v, want NotStartedError", err)
	}
	if err.Error() != "watcher is not running" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestWatcher_SurvivesFailingSource(t *testing.T) {
	src := &fakeSource{
		errs: []error{
			nil,
			errors.New("proc went away"),
			apperrors.SamplingError{Cause: errors.New("permission denied")},
			nil,
		},
	}
	w, _ := New(testConfig(src))

	w.Start()
	defer w.Stop()

	// The loop must sample past both failures.
	waitFor(t, time.Second, func() bool { return src.callCount() >= 5 })

	if got := len(w.Snapshots()); got < 3 {
		t.Errorf("successful snapshots = %d, want >= 3", got)
	}
}

func TestWatcher_CallbackOnLeak(t *testing.T) {
	var calls atomic.Int32
	var last atomic.Value

	cfg := testConfig(growingSource(100, 1, time.Second))
	cfg.Sensitivity = 0.1
	cfg.Callback = func(r detector.Result) {
		calls.Add(1)
		last.Store(r)
	}

	w, _ := New(cfg)
	w.Start()
	defer w.Stop()

	waitFor(t, 2*time.Second, func() bool { return calls.Load() > 0 })

	r := last.Load().(detector.Result)
	if !r.LeakDetected {
		t.Error("callback should receive a leak result")
	}
	if r.GrowthRateMBPerMin <= 0 {
		t.Errorf("GrowthRateMBPerMin = %f, want > 0", r.GrowthRateMBPerMin)
	}
}

func TestWatcher_OnSampleSeesEveryCycle(t *testing.T) {
	var analyzed, raw atomic.Int32

	cfg := testConfig(&fakeSource{})
	cfg.OnSample = func(_ procmem.Snapshot, _ detector.Result, ok bool) {
		raw.Add(1)
		if ok {
			analyzed.Add(1)
		}
	}

	w, _ := New(cfg)
	w.Start()
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return analyzed.Load() >= 1 })

	// Analysis starts at the third snapshot, so the raw count leads the
	// analyzed count by exactly two.
	if raw.Load()-analyzed.Load() != 2 {
		t.Errorf("raw=%d analyzed=%d, want a lead of 2", raw.Load(), analyzed.Load())
	}
}

func TestWatcher_HistoryIsBounded(t *testing.T) {
	cfg := testConfig(&fakeSource{})
	cfg.MaxSnapshots = 5

	w, _ := New(cfg)
	w.Start()
	defer w.Stop()

	waitFor(t, time.Second, func() bool { return len(w.Snapshots()) == 5 })

	time.Sleep(25 * time.Millisecond)
	if got := len(w.Snapshots()); got != 5 {
		t.Errorf("history grew past its capacity: %d", got)
	}
}

func TestWatcher_CurrentMemoryIndependentOfLoop(t *testing.T) {
	src := &fakeSource{script: []procmem.Snapshot{{RSSMB: 123.5}}}
	w, _ := New(testConfig(src))

	got, err := w.CurrentMemory()
	if err != nil {
		t.Fatalf("CurrentMemory: %v", err)
	}
	if got != 123.5 {
		t.Errorf("CurrentMemory = %f, want 123.5", got)
	}
	if w.Running() {
		t.Error("CurrentMemory must not start the loop")
	}
}

func TestWatcher_ClearSnapshots(t *testing.T) {
	w, _ := New(testConfig(&fakeSource{}))
	w.Start()

	waitFor(t, time.Second, func() bool {
		_, ok := w.LastResult()
		return ok
	})
	w.Stop()

	w.ClearSnapshots()

	if got := len(w.Snapshots()); got != 0 {
		t.Errorf("snapshots after clear = %d", got)
	}
	if _, ok := w.LastResult(); ok {
		t.Error("last result should be cleared with the history")
	}
}

func TestWatcher_Report(t *testing.T) {
	w, _ := New(testConfig(growingSource(100, 1, time.Second)))
	w.Start()

	waitFor(t, time.Second, func() bool { return len(w.Snapshots()) >= 5 })
	w.Stop()

	rep := w.Report()
	if !rep.HasData() {
		t.Fatal("report should have data")
	}
	if rep.SnapshotCount < 5 {
		t.Errorf("SnapshotCount = %d, want >= 5", rep.SnapshotCount)
	}
	if rep.MemoryPeakMB < rep.MemoryStartMB {
		t.Errorf("peak %f below start %f", rep.MemoryPeakMB, rep.MemoryStartMB)
	}
}

func TestWatcher_RestartAfterStop(t *testing.T) {
	src := &fakeSource{}
	w, _ := New(testConfig(src))

	w.Start()
	waitFor(t, time.Second, func() bool { return src.callCount() >= 1 })
	if err := w.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}

	w.Start()
	if !w.Running() {
		t.Fatal("watcher should run again after restart")
	}
	before := src.callCount()
	waitFor(t, time.Second, func() bool { return src.callCount() > before })

	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
