// Package app wires configuration, the watcher, and the presentation modes
// into the memwatch executable.
package app

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/acollet/memwatch/internal/config"
	"github.com/acollet/memwatch/internal/detector"
	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/logging"
	"github.com/acollet/memwatch/internal/procmem"
	"github.com/acollet/memwatch/internal/server"
	"github.com/acollet/memwatch/internal/tui"
	"github.com/acollet/memwatch/internal/ui"
	"github.com/acollet/memwatch/internal/watcher"
)

// sampleHook matches the watcher's OnSample signature.
type sampleHook = func(procmem.Snapshot, detector.Result, bool)

// Application represents the memwatch application instance.
type Application struct {
	Config    config.AppConfig
	ErrWriter io.Writer
}

// New creates a new Application instance by parsing command-line arguments.
func New(args []string, errWriter io.Writer) (*Application, error) {
	programName := "memwatch"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errWriter)
	fs.Usage = func() { config.PrintUsage(fs, errWriter) }

	cfg, err := config.ParseConfig(fs, cmdArgs)
	if err != nil {
		return nil, err
	}

	return &Application{Config: cfg, ErrWriter: errWriter}, nil
}

// Run executes the application based on the configured mode.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	if a.Config.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if a.Config.NoColor || a.Config.Theme == "none" {
		ui.InitTheme(true)
	} else {
		ui.SetTheme(a.Config.Theme)
	}

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	if a.Config.TUI {
		return a.runTUI(ctx)
	}
	return a.runWatch(ctx, out)
}

// runTUI launches the live dashboard. The watcher feeds the dashboard
// through a bridge; the metrics server runs alongside when configured.
func (a *Application) runTUI(ctx context.Context) int {
	bridge := tui.NewBridge()
	metrics := a.maybeMetrics()

	w, err := a.newWatcher(composeHooks(bridge.OnSample, observeHook(metrics)))
	if err != nil {
		return a.fail(err)
	}

	srvDone := a.maybeServe(ctx, w, metrics)

	w.Start()
	code := tui.Run(ctx, bridge, w, Version)
	a.stopWatcher(w)
	if srvDone != nil {
		<-srvDone
	}
	return code
}

// newWatcher builds the watcher from the application configuration.
func (a *Application) newWatcher(onSample sampleHook) (*watcher.Watcher, error) {
	errW := a.ErrWriter
	if errW == nil {
		errW = os.Stderr
	}
	return watcher.New(watcher.Config{
		Interval:     a.Config.Interval,
		ThresholdMB:  a.Config.ThresholdMB,
		RuntimeStats: a.Config.RuntimeStats,
		MaxSnapshots: a.Config.MaxSnapshots,
		Sensitivity:  a.Config.Sensitivity,
		OnSample:     onSample,
		Logger:       zerolog.New(zerolog.ConsoleWriter{Out: errW}).With().Timestamp().Logger(),
	})
}

// stopWatcher stops the watcher, tolerating a loop that never started.
func (a *Application) stopWatcher(w *watcher.Watcher) {
	if err := w.Stop(); err != nil {
		var nse apperrors.NotStartedError
		if !errors.As(err, &nse) {
			a.logger().Error("stopping watcher", err)
		}
	}
}

// maybeMetrics creates the Prometheus instruments when serving is enabled.
func (a *Application) maybeMetrics() *server.Metrics {
	if a.Config.ListenAddr == "" {
		return nil
	}
	return server.NewMetrics()
}

// observeHook adapts the metrics instruments into a sample hook; nil metrics
// yield a nil hook.
func observeHook(metrics *server.Metrics) sampleHook {
	if metrics == nil {
		return nil
	}
	return metrics.ObserveSample
}

// composeHooks fans a sampling cycle out to every non-nil hook.
func composeHooks(hooks ...sampleHook) sampleHook {
	var active []sampleHook
	for _, h := range hooks {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(snap procmem.Snapshot, result detector.Result, analyzed bool) {
		for _, h := range active {
			h(snap, result, analyzed)
		}
	}
}

// maybeServe starts the HTTP metrics server when a listen address is
// configured. Returns a channel closed when the server has shut down.
func (a *Application) maybeServe(ctx context.Context, w *watcher.Watcher, metrics *server.Metrics) chan struct{} {
	if metrics == nil {
		return nil
	}

	srv := server.New(a.Config.ListenAddr, w, metrics, a.logger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(ctx); err != nil {
			a.logger().Error("metrics server", err)
		}
	}()
	return done
}

// fail reports a startup error and maps it to an exit code.
func (a *Application) fail(err error) int {
	a.logger().Error("startup failed", err)
	var cfgErr apperrors.ConfigError
	if errors.As(err, &cfgErr) {
		return apperrors.ExitErrorConfig
	}
	return apperrors.ExitErrorGeneric
}

// logger returns the application logger bound to the error writer.
func (a *Application) logger() logging.Logger {
	w := a.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	return logging.NewLogger(w, "app")
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
