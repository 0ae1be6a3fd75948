package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/acollet/memwatch/internal/format"
)

// HeaderModel renders the top bar: title, monitored PID, elapsed time, and
// system-wide memory pressure.
type HeaderModel struct {
	startTime  time.Time
	version    string
	pid        int
	sysMemPct  float64
	sysavailMB float64
	width      int
}

// NewHeaderModel creates a new header for the current process.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{
		startTime: time.Now(),
		version:   version,
		pid:       os.Getpid(),
	}
}

// SetSysStats updates the system memory figures.
func (h *HeaderModel) SetSysStats(memPct, availMB float64) {
	h.sysMemPct = memPct
	h.sysavailMB = availMB
}

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) {
	h.width = w
}

// View renders the header.
func (h HeaderModel) View() string {
	titleText := "memwatch"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	title := titleStyle.Render(titleText)

	pipe := versionStyle.Render(" | ")

	pid := versionStyle.Render(fmt.Sprintf("PID %d", h.pid))
	elapsed := elapsedStyle.Render("Elapsed: " + format.FormatWatchDuration(time.Since(h.startTime)))
	sys := versionStyle.Render(fmt.Sprintf("Sys Mem: %.0f%% (%.0f MB free)", h.sysMemPct, h.sysavailMB))

	leftPart := title + pipe + pid + pipe + elapsed + pipe + sys
	leftLen := lipgloss.Width(leftPart)

	innerWidth := h.width - 2
	if innerWidth < 0 {
		innerWidth = 0
	}

	gap := innerWidth - leftLen
	if gap < 0 {
		gap = 0
	}

	row := leftPart + spaces(gap)

	return headerStyle.Width(h.width).Render(row)
}

// spaces returns a string of n space characters.
func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
