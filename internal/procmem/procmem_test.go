package procmem

import "testing"

func TestCollector_Snapshot(t *testing.T) {
	c, err := NewCollector(false)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.RSSMB <= 0 {
		t.Errorf("RSSMB should be positive, got %f", snap.RSSMB)
	}
	if snap.VMSMB < snap.RSSMB {
		t.Errorf("VMSMB (%f) should be at least RSSMB (%f)", snap.VMSMB, snap.RSSMB)
	}
	if snap.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if snap.GCCycles.Valid || snap.HeapAllocMB.Valid || snap.HeapPeakMB.Valid {
		t.Error("runtime stats fields should be absent when disabled")
	}
}

func TestCollector_SnapshotWithRuntimeStats(t *testing.T) {
	c, err := NewCollector(true)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	snap, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if !snap.HeapAllocMB.Valid || snap.HeapAllocMB.Value <= 0 {
		t.Errorf("HeapAllocMB should be set and positive, got %+v", snap.HeapAllocMB)
	}
	if !snap.HeapPeakMB.Valid || snap.HeapPeakMB.Value < snap.HeapAllocMB.Value {
		t.Errorf("HeapPeakMB (%+v) should be at least HeapAllocMB (%+v)", snap.HeapPeakMB, snap.HeapAllocMB)
	}
	if !snap.GCCycles.Valid {
		t.Error("GCCycles should be set when runtime stats are enabled")
	}
}

func TestCollector_HeapPeakNeverDecreases(t *testing.T) {
	c, err := NewCollector(true)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	first, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Allocate some memory between snapshots
	buf := make([]byte, 8*1024*1024)
	_ = buf

	second, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if second.HeapPeakMB.Value < first.HeapPeakMB.Value {
		t.Errorf("peak decreased: %f -> %f", first.HeapPeakMB.Value, second.HeapPeakMB.Value)
	}
}

func TestCollector_CurrentRSS(t *testing.T) {
	c, err := NewCollector(false)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	rss, err := c.CurrentRSS()
	if err != nil {
		t.Fatalf("CurrentRSS: %v", err)
	}
	if rss <= 0 {
		t.Errorf("CurrentRSS should be positive, got %f", rss)
	}
}
