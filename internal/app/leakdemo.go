package app

import (
	"context"
	"sync"
	"time"
)

// leakDemo retains growing allocations so the detector has something real to
// find. Pages are touched so the kernel actually maps them into the RSS.
type leakDemo struct {
	rateMB float64

	mu      sync.Mutex
	ballast [][]byte
}

const pageSize = 4096

func newLeakDemo(rateMB float64) *leakDemo {
	return &leakDemo{rateMB: rateMB}
}

// run grows the ballast by rateMB every interval until the context ends.
func (l *leakDemo) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.grow()
		}
	}
}

// grow allocates and touches one rateMB-sized block.
func (l *leakDemo) grow() {
	block := make([]byte, int(l.rateMB*1024*1024))
	for i := 0; i < len(block); i += pageSize {
		block[i] = 1
	}

	l.mu.Lock()
	l.ballast = append(l.ballast, block)
	l.mu.Unlock()
}

// retainedMB returns the total ballast size in megabytes.
func (l *leakDemo) retainedMB() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, b := range l.ballast {
		total += len(b)
	}
	return float64(total) / (1024 * 1024)
}

// release drops the ballast so the demo memory can be collected.
func (l *leakDemo) release() {
	l.mu.Lock()
	l.ballast = nil
	l.mu.Unlock()
}
