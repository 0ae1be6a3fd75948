// Package report folds a snapshot history and its latest analysis into
// summary statistics, with JSON and human-readable renderings.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/acollet/memwatch/internal/detector"
	"github.com/acollet/memwatch/internal/format"
	"github.com/acollet/memwatch/internal/procmem"
	"github.com/acollet/memwatch/internal/ui"
)

// StatusNoData marks a report built from an empty history.
const StatusNoData = "no_data"

// detailTail is how many trailing snapshots the detailed rendering lists.
const detailTail = 10

// Report is the structured summary of a monitoring session.
type Report struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	StartedAt         time.Time `json:"started_at,omitempty"`
	DurationSeconds   float64   `json:"duration_seconds"`
	DurationFormatted string    `json:"duration_formatted"`
	SnapshotCount     int       `json:"snapshots_count"`

	MemoryStartMB  float64 `json:"memory_start_mb"`
	MemoryEndMB    float64 `json:"memory_end_mb"`
	MemoryChangeMB float64 `json:"memory_change_mb"`
	MemoryPeakMB   float64 `json:"memory_peak_mb"`
	MemoryMinMB    float64 `json:"memory_min_mb"`

	// LeakAnalysis is present only when at least three snapshots existed.
	LeakAnalysis *detector.Result `json:"leak_analysis,omitempty"`

	ThresholdMB       float64 `json:"threshold_mb,omitempty"`
	ThresholdExceeded bool    `json:"threshold_exceeded,omitempty"`

	// snapshots backs the detailed rendering; not serialized.
	snapshots []procmem.Snapshot
}

// HasData reports whether any snapshots backed this report.
func (r Report) HasData() bool { return r.Status != StatusNoData }

// Build folds the snapshot window into a report. A threshold of zero means
// no threshold was configured. An empty window yields the no-data variant.
func Build(snapshots []procmem.Snapshot, startedAt time.Time, det *detector.Detector, thresholdMB float64) Report {
	if len(snapshots) == 0 {
		return Report{
			Status:  StatusNoData,
			Message: "No snapshots recorded yet",
		}
	}

	first, last := snapshots[0], snapshots[len(snapshots)-1]
	duration := last.Timestamp.Sub(first.Timestamp)

	peak, minimum := first.RSSMB, first.RSSMB
	for _, s := range snapshots[1:] {
		if s.RSSMB > peak {
			peak = s.RSSMB
		}
		if s.RSSMB < minimum {
			minimum = s.RSSMB
		}
	}

	r := Report{
		StartedAt:         startedAt,
		DurationSeconds:   duration.Seconds(),
		DurationFormatted: format.FormatWatchDuration(duration),
		SnapshotCount:     len(snapshots),
		MemoryStartMB:     first.RSSMB,
		MemoryEndMB:       last.RSSMB,
		MemoryChangeMB:    last.RSSMB - first.RSSMB,
		MemoryPeakMB:      peak,
		MemoryMinMB:       minimum,
		snapshots:         snapshots,
	}

	if len(snapshots) >= 3 && det != nil {
		analysis := det.Analyze(snapshots)
		r.LeakAnalysis = &analysis
	}

	if thresholdMB > 0 {
		r.ThresholdMB = thresholdMB
		r.ThresholdExceeded = last.RSSMB > thresholdMB
	}

	return r
}

// Render writes the human-readable report. With detailed set, the last few
// snapshots are listed individually.
func (r Report) Render(w io.Writer, detailed bool) {
	if !r.HasData() {
		fmt.Fprintln(w, r.Message)
		return
	}

	t := ui.GetCurrentTheme()
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%sMEMORY WATCH REPORT%s\n", t.Bold, t.Reset)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Duration:  %s\n", r.DurationFormatted)
	fmt.Fprintf(w, "Snapshots: %d\n", r.SnapshotCount)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Memory Usage:")
	fmt.Fprintf(w, "  Start:  %.2f MB\n", r.MemoryStartMB)
	fmt.Fprintf(w, "  End:    %.2f MB\n", r.MemoryEndMB)
	fmt.Fprintf(w, "  Change: %+.2f MB\n", r.MemoryChangeMB)
	fmt.Fprintf(w, "  Peak:   %.2f MB\n", r.MemoryPeakMB)
	fmt.Fprintf(w, "  Min:    %.2f MB\n", r.MemoryMinMB)

	if a := r.LeakAnalysis; a != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Leak Detection:")
		if a.LeakDetected {
			fmt.Fprintf(w, "  Status: %sLEAK DETECTED%s\n", t.Error, t.Reset)
			fmt.Fprintf(w, "  Severity:       %s\n", strings.ToUpper(string(a.Severity)))
			fmt.Fprintf(w, "  Confidence:     %.1f%%\n", a.Confidence*100)
			fmt.Fprintf(w, "  Growth Rate:    %.3f MB/min\n", a.GrowthRateMBPerMin)
			fmt.Fprintf(w, "  Total Increase: %.2f MB\n", a.MemoryIncreaseMB)
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Recommendation: %s\n", a.Recommendation)
		} else {
			fmt.Fprintf(w, "  Status: %sNo leak detected%s\n", t.Success, t.Reset)
		}
	}

	if r.ThresholdMB > 0 && r.ThresholdExceeded {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%sWARNING: memory threshold exceeded%s\n", t.Warning, t.Reset)
		fmt.Fprintf(w, "  Current:   %.2f MB\n", r.MemoryEndMB)
		fmt.Fprintf(w, "  Threshold: %.2f MB\n", r.ThresholdMB)
	}

	if detailed && len(r.snapshots) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "DETAILED SNAPSHOTS (last %d):\n", detailTail)
		fmt.Fprintln(w, rule)

		tail := r.snapshots
		if len(tail) > detailTail {
			tail = tail[len(tail)-detailTail:]
		}
		for _, s := range tail {
			elapsed := s.Timestamp.Sub(r.snapshots[0].Timestamp).Seconds()
			fmt.Fprintf(w, "  [%7.1fs] RSS: %7.2f MB | VMS: %7.2f MB | Threads: %d\n",
				elapsed, s.RSSMB, s.VMSMB, s.Threads)
		}
	}

	fmt.Fprintln(w, rule)
}
