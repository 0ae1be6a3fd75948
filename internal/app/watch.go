package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/report"
	"github.com/acollet/memwatch/internal/watcher"
)

// spinnerRefreshRate defines the spinner animation interval.
const spinnerRefreshRate = 200 * time.Millisecond

// Spinner abstracts the terminal spinner so watch mode can run without a
// terminal in tests.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner wraps spinner.Spinner behind the Spinner interface.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }
func (rs *realSpinner) Stop()  { rs.s.Stop() }
func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Suffix = suffix
}

// newSpinner is swapped out in tests.
var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], spinnerRefreshRate, options...)
	return &realSpinner{s}
}

// nullSpinner satisfies Spinner without touching the terminal.
type nullSpinner struct{}

func (nullSpinner) Start()              {}
func (nullSpinner) Stop()               {}
func (nullSpinner) UpdateSuffix(string) {}

// runWatch is the default batch mode: monitor for the configured duration
// (or until canceled), then print the session report.
func (a *Application) runWatch(ctx context.Context, out io.Writer) int {
	metrics := a.maybeMetrics()

	w, err := a.newWatcher(observeHook(metrics))
	if err != nil {
		return a.fail(err)
	}

	var sp Spinner = nullSpinner{}
	if !a.Config.Quiet && !a.Config.JSONOutput {
		sp = newSpinner()
	}

	w.Start()
	sp.Start()

	g, gctx := errgroup.WithContext(ctx)

	srvDone := a.maybeServe(gctx, w, metrics)

	var demo *leakDemo
	if a.Config.LeakDemo {
		demo = newLeakDemo(a.Config.LeakRateMB)
		g.Go(func() error {
			demo.run(gctx, a.Config.Interval)
			return nil
		})
	}

	g.Go(func() error {
		return a.watchLoop(gctx, w, sp)
	})

	runErr := g.Wait()
	sp.Stop()
	a.stopWatcher(w)
	if demo != nil {
		demo.release()
	}
	if srvDone != nil {
		<-srvDone
	}

	rep := w.Report()
	if err := a.printReport(rep, out); err != nil {
		a.logger().Error("writing report", err)
		return apperrors.ExitErrorGeneric
	}

	if apperrors.IsContextError(runErr) {
		return apperrors.ExitErrorCanceled
	}
	if rep.ThresholdExceeded {
		return apperrors.ExitErrorThreshold
	}
	return apperrors.ExitSuccess
}

// watchLoop keeps the spinner suffix current until the watch duration
// elapses or the context is canceled. With no duration configured (serve
// mode) it runs until cancellation.
func (a *Application) watchLoop(ctx context.Context, w *watcher.Watcher, sp Spinner) error {
	var deadline <-chan time.Time
	if a.Config.Duration > 0 {
		timer := time.NewTimer(a.Config.Duration)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(spinnerRefreshRate)
	defer ticker.Stop()

	started := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return nil
		case <-ticker.C:
			sp.UpdateSuffix(a.spinnerSuffix(w, time.Since(started)))
		}
	}
}

// spinnerSuffix summarizes the live state for the spinner line.
func (a *Application) spinnerSuffix(w *watcher.Watcher, elapsed time.Duration) string {
	current, err := w.CurrentMemory()
	if err != nil {
		return fmt.Sprintf(" watching... %s", elapsed.Round(time.Second))
	}

	suffix := fmt.Sprintf(" watching... %s | RSS %.1f MB", elapsed.Round(time.Second), current)
	if result, ok := w.LastResult(); ok && result.LeakDetected {
		suffix += fmt.Sprintf(" | LEAK %.2f MB/min", result.GrowthRateMBPerMin)
	}
	return suffix
}

// printReport writes the report in the configured format.
func (a *Application) printReport(rep report.Report, out io.Writer) error {
	if a.Config.JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	rep.Render(out, a.Config.Detailed)
	return nil
}
