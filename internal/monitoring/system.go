package monitoring

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatus is a snapshot of host health for the admin panel.
type SystemStatus struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsed    uint64  `json:"memoryUsed"`
	MemoryTotal   uint64  `json:"memoryTotal"`
	DiskPercent   float64 `json:"diskPercent"`
	DiskUsed      uint64  `json:"diskUsed"`
	DiskTotal     uint64  `json:"diskTotal"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
}

// CollectSystemStatus samples host CPU, memory, disk and uptime. Partial
// failures leave the corresponding fields at zero rather than failing the
// whole snapshot.
func CollectSystemStatus() SystemStatus {
	var status SystemStatus

	if percents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(percents) > 0 {
		status.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status.MemoryPercent = vm.UsedPercent
		status.MemoryUsed = vm.Used
		status.MemoryTotal = vm.Total
	}
	if du, err := disk.Usage("/"); err == nil {
		status.DiskPercent = du.UsedPercent
		status.DiskUsed = du.Used
		status.DiskTotal = du.Total
	}
	if uptime, err := host.Uptime(); err == nil {
		status.UptimeSeconds = uptime
	}

	return status
}
