// Package detector classifies memory snapshot sequences as leaking or stable.
//
// The detector is a pure function over a snapshot window aside from one
// tunable, Sensitivity. A leak is a sustained, low-variance upward trend;
// transient spikes and noisy bouncing values must not be flagged even when
// they carry a slight upward bias.
package detector

import (
	"math"

	"github.com/acollet/memwatch/internal/procmem"
)

const (
	// DefaultSensitivity is the growth-rate threshold (MB/s) above which a
	// consistent trend is considered a leak. Lower values flag smaller leaks.
	DefaultSensitivity = 0.15

	// trendWindow is the number of trailing samples inspected by the
	// strict-increase trend test. Fixed, not scaled by sensitivity.
	trendWindow = 5

	// trendFraction is the share of adjacent increases required for an
	// upward trend.
	trendFraction = 0.6

	// maxVariationCoefficient gates classification: growth is only trusted
	// as a leak while stdev/mean stays below this ratio.
	maxVariationCoefficient = 0.3

	// minAnalyzeSnapshots is the smallest window Analyze will classify.
	minAnalyzeSnapshots = 3

	// minAnomalyHistory is the smallest window DetectAnomaly will score
	// (the final snapshot is held out as the probe's position).
	minAnomalyHistory = 10

	// anomalyZScore is the z-score magnitude beyond which a probe value is
	// anomalous against the historical distribution.
	anomalyZScore = 3.0
)

// Severity buckets a detected leak by its growth rate per minute.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Recommendation strings keyed by severity.
const (
	recommendationHigh   = "Critical: investigate immediately, memory growing rapidly."
	recommendationMedium = "Warning: potential leak, monitor closely."
	recommendationLow    = "Info: slow growth, may be normal."
	recommendationNone   = "Memory usage appears stable."
)

// Result is the outcome of analyzing a snapshot window. It is recomputed
// from scratch on every call and never persisted by the detector.
type Result struct {
	LeakDetected       bool     `json:"leak_detected"`
	Confidence         float64  `json:"confidence"`
	GrowthRateMBPerMin float64  `json:"growth_rate_mb_per_min"`
	CurrentMemoryMB    float64  `json:"current_memory_mb"`
	MemoryIncreaseMB   float64  `json:"memory_increase_mb"`
	SnapshotsAnalyzed  int      `json:"snapshots_analyzed"`
	Severity           Severity `json:"severity"`
	Recommendation     string   `json:"recommendation"`
	// Reason is set when the window was too small to classify.
	Reason string `json:"reason,omitempty"`
}

// Anomaly is the outcome of scoring a probe value against history.
type Anomaly struct {
	Detected     bool    `json:"anomaly_detected"`
	ZScore       float64 `json:"z_score"`
	ExpectedLow  float64 `json:"expected_low"`
	ExpectedHigh float64 `json:"expected_high"`
	CurrentValue float64 `json:"current_value"`
}

// Detector analyzes snapshot windows for leak and anomaly signals.
type Detector struct {
	// Sensitivity is the growth-rate threshold in MB per second (0-1).
	Sensitivity float64
}

// New creates a detector. A non-positive sensitivity falls back to the default.
func New(sensitivity float64) *Detector {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	return &Detector{Sensitivity: sensitivity}
}

// Analyze classifies the snapshot window. Windows shorter than three
// snapshots return a non-leak result with Reason set; that is a normal
// outcome, not an error.
func (d *Detector) Analyze(snapshots []procmem.Snapshot) Result {
	if len(snapshots) < minAnalyzeSnapshots {
		return Result{
			Severity:       SeverityNone,
			Recommendation: recommendationNone,
			Reason:         "insufficient data",
		}
	}

	values := make([]float64, len(snapshots))
	elapsed := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.RSSMB
		elapsed[i] = s.Timestamp.Sub(snapshots[0].Timestamp).Seconds()
	}

	growthRate := growthRateMBPerSec(values, elapsed)
	trendingUp := trendingUpward(values)
	variation := variationCoefficient(values)

	leak := trendingUp && growthRate > d.Sensitivity && variation < maxVariationCoefficient

	result := Result{
		LeakDetected:       leak,
		GrowthRateMBPerMin: growthRate * 60,
		CurrentMemoryMB:    values[len(values)-1],
		MemoryIncreaseMB:   values[len(values)-1] - values[0],
		SnapshotsAnalyzed:  len(snapshots),
	}

	if leak {
		result.Confidence = math.Min(1.0, growthRate*2)
		result.Severity, result.Recommendation = classify(result.GrowthRateMBPerMin)
	} else {
		result.Severity = SeverityNone
		result.Recommendation = recommendationNone
	}

	return result
}

// DetectAnomaly scores current against the historical snapshot values,
// holding out the final snapshot as the probe's own position. With fewer
// than ten snapshots it reports no anomaly, which is distinct from an error.
func (d *Detector) DetectAnomaly(snapshots []procmem.Snapshot, current float64) Anomaly {
	if len(snapshots) < minAnomalyHistory {
		return Anomaly{CurrentValue: current}
	}

	history := make([]float64, len(snapshots)-1)
	for i := range history {
		history[i] = snapshots[i].RSSMB
	}

	m := mean(history)
	sd := math.Sqrt(sampleVariance(history, m))

	var z float64
	if sd > 0 {
		z = (current - m) / sd
	}

	return Anomaly{
		Detected:     math.Abs(z) > anomalyZScore,
		ZScore:       z,
		ExpectedLow:  m - 2*sd,
		ExpectedHigh: m + 2*sd,
		CurrentValue: current,
	}
}

// classify buckets a detected leak by growth rate in MB per minute.
func classify(ratePerMin float64) (Severity, string) {
	switch {
	case ratePerMin > 10:
		return SeverityHigh, recommendationHigh
	case ratePerMin > 1:
		return SeverityMedium, recommendationMedium
	default:
		return SeverityLow, recommendationLow
	}
}

// growthRateMBPerSec fits an ordinary least-squares slope of memory over
// elapsed seconds. Negative slopes clamp to zero: the detector reports
// growth, never shrinkage. A zero time-variance denominator (all samples
// at one instant) yields zero.
func growthRateMBPerSec(values, elapsed []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	meanX := mean(elapsed)
	meanY := mean(values)

	var numerator, denominator float64
	for i := range values {
		dx := elapsed[i] - meanX
		numerator += dx * (values[i] - meanY)
		denominator += dx * dx
	}

	if denominator == 0 {
		return 0
	}
	return math.Max(0, numerator/denominator)
}

// trendingUpward reports whether the last trendWindow values increase
// strictly in more than trendFraction of adjacent pairs. Windows with
// fewer than two values cannot trend.
func trendingUpward(values []float64) bool {
	window := trendWindow
	if len(values) < window {
		window = len(values)
	}
	recent := values[len(values)-window:]
	if len(recent) < 2 {
		return false
	}

	increases := 0
	for i := 1; i < len(recent); i++ {
		if recent[i] > recent[i-1] {
			increases++
		}
	}
	return float64(increases)/float64(len(recent)-1) > trendFraction
}

// variationCoefficient returns stdev/mean over the full window, or zero
// when the mean is non-positive.
func variationCoefficient(values []float64) float64 {
	m := mean(values)
	if m <= 0 {
		return 0
	}
	return math.Sqrt(sampleVariance(values, m)) / m
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance is the n-1 variance; zero for windows shorter than two.
func sampleVariance(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values)-1)
}
