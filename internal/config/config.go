// Package config defines the application configuration and its resolution
// chain: CLI flags > environment variables (MEMWATCH_ prefix) > defaults.
package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/acollet/memwatch/internal/detector"
	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/history"
)

// EnvPrefix is prepended to every environment variable the application reads.
const EnvPrefix = "MEMWATCH_"

// Default values for flags that have non-zero defaults.
const (
	DefaultInterval = time.Second
	DefaultDuration = 30 * time.Second
)

// AppConfig holds all runtime configuration for the application.
type AppConfig struct {
	// Interval is the time between memory snapshots.
	Interval time.Duration
	// Duration is how long the default watch mode runs.
	Duration time.Duration
	// ThresholdMB enables threshold reporting when positive (megabytes).
	ThresholdMB float64
	// Sensitivity is the leak detector's growth-rate gate in MB/s.
	Sensitivity float64
	// MaxSnapshots caps the snapshot history.
	MaxSnapshots int
	// RuntimeStats adds Go heap statistics to each snapshot.
	RuntimeStats bool
	// Detailed lists individual snapshots in the final report.
	Detailed bool
	// JSONOutput emits the report as JSON instead of the text rendering.
	JSONOutput bool
	// Quiet suppresses the spinner and progress output.
	Quiet bool
	// Verbose enables debug-level logging.
	Verbose bool
	// TUI runs the live dashboard instead of the batch watch.
	TUI bool
	// LeakDemo allocates retained memory to demonstrate detection.
	LeakDemo bool
	// LeakRateMB is the demo allocation rate in MB per interval.
	LeakRateMB float64
	// ListenAddr serves Prometheus metrics and the JSON report over HTTP
	// when non-empty (e.g. ":9090").
	ListenAddr string
	// Theme selects the output color scheme: dark, light, none.
	Theme string
	// NoColor disables all color output.
	NoColor bool
}

// ParseConfig parses command-line flags into an AppConfig, applies
// environment variable overrides for flags not explicitly set, and validates
// the result. Errors are reported through the flag set's configured output.
func ParseConfig(fs *flag.FlagSet, args []string) (AppConfig, error) {
	var cfg AppConfig

	fs.DurationVar(&cfg.Interval, "interval", DefaultInterval, "Time between memory snapshots")
	fs.DurationVar(&cfg.Duration, "duration", DefaultDuration, "How long to watch before reporting")
	fs.Float64Var(&cfg.ThresholdMB, "threshold", 0, "Memory threshold in MB (0 disables)")
	fs.Float64Var(&cfg.Sensitivity, "sensitivity", detector.DefaultSensitivity, "Leak detection sensitivity in MB/s")
	fs.IntVar(&cfg.MaxSnapshots, "max-snapshots", history.DefaultCapacity, "Snapshot history capacity")
	fs.BoolVar(&cfg.RuntimeStats, "runtime-stats", false, "Include Go heap statistics in snapshots")
	fs.BoolVar(&cfg.Detailed, "details", false, "List individual snapshots in the report")
	fs.BoolVar(&cfg.Detailed, "d", false, "List individual snapshots in the report (shorthand)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "Emit the report as JSON")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress progress output")
	fs.BoolVar(&cfg.Quiet, "q", false, "Suppress progress output (shorthand)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Enable debug logging")
	fs.BoolVar(&cfg.TUI, "tui", false, "Run the live dashboard")
	fs.BoolVar(&cfg.LeakDemo, "leak", false, "Simulate a memory leak to demonstrate detection")
	fs.Float64Var(&cfg.LeakRateMB, "leak-rate", 2, "Simulated leak growth in MB per interval")
	fs.StringVar(&cfg.ListenAddr, "listen", "", "Serve metrics over HTTP on this address (empty disables)")
	fs.StringVar(&cfg.Theme, "theme", "dark", "Color theme: dark, light, none")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable color output")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg, fs)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the watcher cannot run with.
func (c AppConfig) Validate() error {
	if c.Interval <= 0 {
		return apperrors.NewConfigError("interval must be positive, got %s", c.Interval)
	}
	if c.Duration <= 0 && !c.TUI && c.ListenAddr == "" {
		return apperrors.NewConfigError("duration must be positive, got %s", c.Duration)
	}
	if c.ThresholdMB < 0 {
		return apperrors.NewConfigError("threshold must not be negative, got %f", c.ThresholdMB)
	}
	if c.MaxSnapshots <= 0 {
		return apperrors.NewConfigError("max-snapshots must be positive, got %d", c.MaxSnapshots)
	}
	if c.LeakDemo && c.LeakRateMB <= 0 {
		return apperrors.NewConfigError("leak-rate must be positive, got %f", c.LeakRateMB)
	}
	switch c.Theme {
	case "dark", "light", "none":
	default:
		return apperrors.NewConfigError("unknown theme %q (valid: dark, light, none)", c.Theme)
	}
	return nil
}

// PrintUsage writes the flag summary with environment variable documentation.
func PrintUsage(fs *flag.FlagSet, out io.Writer) {
	fmt.Fprintf(out, "Usage: %s [flags]\n\nFlags:\n", fs.Name())
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEnvironment variables (overridden by explicit flags, prefix %s):\n", EnvPrefix)
	fmt.Fprintln(out, "  INTERVAL, DURATION, THRESHOLD, SENSITIVITY, MAX_SNAPSHOTS,")
	fmt.Fprintln(out, "  RUNTIME_STATS, DETAILS, JSON, QUIET, VERBOSE, TUI, LISTEN, THEME")
}
