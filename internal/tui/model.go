package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	apperrors "github.com/acollet/memwatch/internal/errors"
	"github.com/acollet/memwatch/internal/sysmon"
)

// Controller is the slice of the watcher the dashboard drives. The clear key
// empties the analysis history through it.
type Controller interface {
	ClearSnapshots()
}

// LayoutManager holds terminal dimensions and provides layout calculations.
type LayoutManager struct {
	width  int
	height int
}

// Layout constants for the dashboard.
const (
	headerHeight    = 1
	footerHeight    = 1
	minBodyHeight   = 4
	statsPanelWidth = 38
)

// bodyHeight returns the available height for the main body panels.
func (l LayoutManager) bodyHeight() int {
	h := l.height - headerHeight - footerHeight
	if h < minBodyHeight {
		h = minBodyHeight
	}
	return h
}

// statsWidth returns the width allocated to the stats panel.
func (l LayoutManager) statsWidth() int {
	if l.width < statsPanelWidth*2 {
		return l.width / 2
	}
	return statsPanelWidth
}

// chartWidth returns the width allocated to the chart panel.
func (l LayoutManager) chartWidth() int {
	return l.width - l.statsWidth()
}

// Model is the root bubbletea model for the live memory dashboard.
type Model struct {
	header HeaderModel
	stats  StatsModel
	chart  ChartModel
	footer FooterModel

	keymap KeyMap

	LayoutManager

	controller Controller
	cancel     context.CancelFunc
	ref        *programRef
	paused     bool
	exitCode   int
}

// NewModel creates the dashboard model. The bridge must be the one wired
// into the watcher's OnSample hook.
func NewModel(bridge *Bridge, controller Controller, cancel context.CancelFunc, version string) Model {
	keymap := DefaultKeyMap()
	return Model{
		header:     NewHeaderModel(version),
		stats:      NewStatsModel(),
		chart:      NewChartModel(),
		footer:     NewFooterModel(keymap),
		keymap:     keymap,
		controller: controller,
		cancel:     cancel,
		ref:        bridge.ref,
		exitCode:   apperrors.ExitSuccess,
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()
		return m, nil

	case SampleMsg:
		if !m.paused {
			m.stats.UpdateSample(msg)
			m.chart.AddPoint(msg.Snapshot.RSSMB)
		}
		return m, nil

	case SysStatsMsg:
		m.header.SetSysStats(msg.MemPercent, msg.MemAvailableMB)
		return m, nil

	case TickMsg:
		if m.paused {
			return m, tickCmd()
		}
		return m, tea.Batch(sampleSysStatsCmd(), tickCmd())

	case ContextCancelledMsg:
		if apperrors.IsContextError(msg.Err) {
			m.exitCode = apperrors.ExitErrorCanceled
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Pause):
		m.paused = !m.paused
		m.footer.SetPaused(m.paused)
		return m, nil

	case key.Matches(msg, m.keymap.Clear):
		if m.controller != nil {
			m.controller.ClearSnapshots()
		}
		m.stats.Reset()
		m.chart.Reset()
		return m, nil
	}

	return m, nil
}

// View renders the entire dashboard.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.header.View()
	footer := m.footer.View()

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.stats.View(), m.chart.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) layoutPanels() {
	m.header.SetWidth(m.width)
	m.footer.SetWidth(m.width)
	m.stats.SetSize(m.statsWidth(), m.bodyHeight())
	m.chart.SetSize(m.chartWidth(), m.bodyHeight())
}

// Run is the public entry point for the dashboard mode. It creates the
// bubbletea program, connects the bridge, runs until quit or context
// cancellation, and returns the exit code.
func Run(ctx context.Context, bridge *Bridge, controller Controller, version string) int {
	// Rebuild styles from the current ui theme (set by app.Run via InitTheme).
	initTUIStyles()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewModel(bridge, controller, cancel, version)

	p := tea.NewProgram(model, tea.WithAltScreen())
	// Inject the program reference before running so the watcher can Send.
	bridge.ref.SetProgram(p)

	go func() {
		<-ctx.Done()
		bridge.ref.Send(ContextCancelledMsg{Err: ctx.Err()})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return apperrors.ExitErrorGeneric
	}

	if m, ok := finalModel.(Model); ok {
		return m.exitCode
	}
	return apperrors.ExitSuccess
}

// tickCmd returns a command that sends a TickMsg after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// sampleSysStatsCmd reads system-wide CPU and memory stats and returns a SysStatsMsg.
func sampleSysStatsCmd() tea.Cmd {
	return func() tea.Msg {
		s := sysmon.Sample()
		return SysStatsMsg{
			CPUPercent:     s.CPUPercent,
			MemPercent:     s.MemPercent,
			MemAvailableMB: s.MemAvailableMB,
		}
	}
}
