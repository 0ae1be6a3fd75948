// Package sysmon provides system-wide CPU and memory usage sampling for the
// dashboard header, as context for the per-process numbers.
package sysmon

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Stats holds a single snapshot of system-wide resource usage.
type Stats struct {
	CPUPercent     float64 // 0.0 .. 100.0
	MemPercent     float64 // 0.0 .. 100.0
	MemTotalMB     float64
	MemAvailableMB float64
}

const bytesPerMB = 1024 * 1024

// Sample collects a single system-wide CPU and memory snapshot.
// CPU uses interval=0 (delta since last call). Returns zero values on error.
func Sample() Stats {
	var s Stats
	cpuPcts, err := cpu.Percent(0, false)
	if err == nil && len(cpuPcts) > 0 {
		s.CPUPercent = cpuPcts[0]
	}
	vmem, err := mem.VirtualMemory()
	if err == nil && vmem != nil {
		s.MemPercent = vmem.UsedPercent
		s.MemTotalMB = float64(vmem.Total) / bytesPerMB
		s.MemAvailableMB = float64(vmem.Available) / bytesPerMB
	}
	return s
}
