package watcher

import (
	"context"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/report"
)

// WatchConfig extends Config for the scoped Watch helper.
type WatchConfig struct {
	Config

	// RaiseOnThreshold makes Watch return a ThresholdError when the final
	// resident set size exceeds ThresholdMB after fn completes. The check
	// is after the fact: fn is never interrupted by the threshold.
	RaiseOnThreshold bool
}

// Watch monitors memory for the duration of fn: it starts a temporary
// watcher, runs fn under an errgroup scope, stops the watcher, and returns
// the session report. Monitoring errors never mask fn's own error.
//
// With RaiseOnThreshold set, a final RSS above the threshold turns a
// successful fn into a ThresholdError return; the report is valid either way.
func Watch(ctx context.Context, cfg WatchConfig, fn func(context.Context) error) (report.Report, error) {
	w, err := New(cfg.Config)
	if err != nil {
		return report.Report{}, err
	}

	w.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fn(gctx) })
	runErr := g.Wait()

	if err := w.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("stopping scoped watcher")
	}
	rep := w.Report()

	if runErr != nil {
		return rep, runErr
	}

	if cfg.RaiseOnThreshold && cfg.ThresholdMB > 0 {
		current, err := w.CurrentMemory()
		if err != nil {
			return rep, apperrors.WrapError(err, "reading final memory")
		}
		if current > cfg.ThresholdMB {
			return rep, apperrors.ThresholdError{CurrentMB: current, ThresholdMB: cfg.ThresholdMB}
		}
	}

	return rep, nil
}
