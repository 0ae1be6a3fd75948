package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/acollet/memwatch/internal/detector"
	"github.com/acollet/memwatch/internal/procmem"
)

// StatsModel displays the latest process snapshot and analysis result.
type StatsModel struct {
	snap     procmem.Snapshot
	result   detector.Result
	analyzed bool
	samples  int
	width    int
	height   int
}

// NewStatsModel creates an empty stats panel.
func NewStatsModel() StatsModel {
	return StatsModel{}
}

// SetSize updates dimensions.
func (s *StatsModel) SetSize(w, h int) {
	s.width = w
	s.height = h
}

// UpdateSample stores the latest sampling cycle.
func (s *StatsModel) UpdateSample(msg SampleMsg) {
	s.snap = msg.Snapshot
	if msg.Analyzed {
		s.result = msg.Result
		s.analyzed = true
	}
	s.samples++
}

// Reset clears the panel back to its initial state.
func (s *StatsModel) Reset() {
	*s = StatsModel{width: s.width, height: s.height}
}

// View renders the stats panel.
func (s StatsModel) View() string {
	var rows strings.Builder

	row := func(label, value string) {
		rows.WriteString(metricLabelStyle.Render(fmt.Sprintf("%-10s", label)))
		rows.WriteString(metricValueStyle.Render(value))
		rows.WriteString("\n")
	}

	row("RSS", fmt.Sprintf("%.2f MB", s.snap.RSSMB))
	row("VMS", fmt.Sprintf("%.2f MB", s.snap.VMSMB))
	row("Threads", fmt.Sprintf("%d", s.snap.Threads))
	if s.snap.HeapAllocMB.Valid {
		row("Heap", fmt.Sprintf("%.2f MB (peak %.2f)", s.snap.HeapAllocMB.Value, s.snap.HeapPeakMB.Value))
	}
	if s.snap.GCCycles.Valid {
		row("GC", fmt.Sprintf("%d cycles", s.snap.GCCycles.Value))
	}
	row("Samples", fmt.Sprintf("%d", s.samples))

	rows.WriteString("\n")
	rows.WriteString(s.leakLine())

	return panelStyle.Width(s.width - 2).Height(s.height - 2).Render(rows.String())
}

// leakLine renders the analysis status line.
func (s StatsModel) leakLine() string {
	if !s.analyzed {
		return metricLabelStyle.Render("Analyzing: waiting for snapshots...")
	}
	if s.result.LeakDetected {
		return statusErrorStyle.Render(fmt.Sprintf("LEAK %s  %.2f MB/min  conf %.0f%%",
			strings.ToUpper(string(s.result.Severity)),
			s.result.GrowthRateMBPerMin,
			s.result.Confidence*100))
	}
	return statusRunningStyle.Render(fmt.Sprintf("STABLE  %.2f MB/min", s.result.GrowthRateMBPerMin))
}

// ChartModel renders the RSS history as a braille chart.
type ChartModel struct {
	history *RingBuffer
	width   int
	height  int
}

// chartHistoryCapacity bounds the plotted window. Two dot columns per
// character at typical terminal widths.
const chartHistoryCapacity = 480

// NewChartModel creates an empty chart.
func NewChartModel() ChartModel {
	return ChartModel{history: NewRingBuffer(chartHistoryCapacity)}
}

// SetSize updates dimensions.
func (c *ChartModel) SetSize(w, h int) {
	c.width = w
	c.height = h
}

// AddPoint appends one RSS sample in MB.
func (c *ChartModel) AddPoint(rssMB float64) {
	c.history.Push(rssMB)
}

// Reset clears the plotted history.
func (c *ChartModel) Reset() {
	c.history.Reset()
}

// View renders the chart panel.
func (c ChartModel) View() string {
	innerWidth := c.width - 4
	innerHeight := c.height - 3
	if innerWidth < 1 {
		innerWidth = 1
	}
	if innerHeight < 1 {
		innerHeight = 1
	}

	values := c.history.Slice()
	title := metricLabelStyle.Render(fmt.Sprintf("RSS history (%.2f MB)", c.history.Last()))

	var body string
	if len(values) < 2 {
		body = chartEmptyStyle.Render("collecting...")
	} else {
		lines := RenderBrailleChart(ScaleToPercent(values), innerWidth, innerHeight)
		styled := make([]string, len(lines))
		for i, line := range lines {
			styled[i] = chartBarStyle.Render(line)
		}
		body = strings.Join(styled, "\n")
	}

	content := title + "\n" + body
	return panelStyle.Width(c.width - 2).Height(c.height - 2).Render(content)
}

// FooterModel renders the bottom bar: key help and run status.
type FooterModel struct {
	keymap KeyMap
	paused bool
	width  int
}

// NewFooterModel creates the footer.
func NewFooterModel(keymap KeyMap) FooterModel {
	return FooterModel{keymap: keymap}
}

// SetWidth updates the available width.
func (f *FooterModel) SetWidth(w int) {
	f.width = w
}

// SetPaused updates the paused indicator.
func (f *FooterModel) SetPaused(paused bool) {
	f.paused = paused
}

// View renders the footer.
func (f FooterModel) View() string {
	status := statusRunningStyle.Render("RUNNING")
	if f.paused {
		status = statusPausedStyle.Render("PAUSED")
	}

	var help []string
	for _, b := range []struct{ k, d string }{
		{f.keymap.Quit.Help().Key, f.keymap.Quit.Help().Desc},
		{f.keymap.Pause.Help().Key, f.keymap.Pause.Help().Desc},
		{f.keymap.Clear.Help().Key, f.keymap.Clear.Help().Desc},
	} {
		help = append(help, footerKeyStyle.Render(b.k)+footerDescStyle.Render(" "+b.d))
	}

	left := status + versionStyle.Render(" | ") + strings.Join(help, footerDescStyle.Render("  "))
	gap := f.width - lipgloss.Width(left) - 2
	if gap < 0 {
		gap = 0
	}
	return headerStyle.Width(f.width).Render(left + spaces(gap))
}
