package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/acollet/memwatch/internal/detector"
	"github.com/acollet/memwatch/internal/procmem"
)

// programRef is a shared reference to the tea.Program.
// Because bubbletea copies the model on every Update, we need a pointer
// that survives copies so the bridge goroutines can send messages.
type programRef struct {
	mu      sync.RWMutex
	program *tea.Program
}

// SetProgram sets the tea.Program reference (thread-safe).
func (r *programRef) SetProgram(p *tea.Program) {
	r.mu.Lock()
	r.program = p
	r.mu.Unlock()
}

// Send sends a message to the bubbletea program (thread-safe).
// A no-op until SetProgram has been called.
func (r *programRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.program
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// Bridge carries sampling cycles from the watcher goroutine into the
// dashboard. Create it first, wire OnSample into the watcher config, then
// hand it to Run.
type Bridge struct {
	ref *programRef
}

// NewBridge creates an unconnected bridge. Samples sent before the program
// starts are dropped.
func NewBridge() *Bridge {
	return &Bridge{ref: &programRef{}}
}

// OnSample forwards one sampling cycle to the dashboard. It matches the
// watcher's OnSample hook signature.
func (b *Bridge) OnSample(snap procmem.Snapshot, result detector.Result, analyzed bool) {
	b.ref.Send(SampleMsg{Snapshot: snap, Result: result, Analyzed: analyzed})
}
