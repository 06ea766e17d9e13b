package system

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// GetHostInfo retrieves host identification and headline resource usage.
// diskPath is optional; when set its filesystem usage is included. Only the
// host lookup is fatal, the remaining figures are best effort.
func GetHostInfo(ctx context.Context, diskPath string) (*HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get host info: %w", err)
	}

	out := &HostInfo{
		Hostname:      info.Hostname,
		OS:            info.OS,
		Platform:      info.Platform,
		KernelVersion: info.KernelVersion,
		Uptime:        info.Uptime,
		UptimeHuman:   formatUptime(info.Uptime),
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.LoadAvg1 = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemoryPercent = vm.UsedPercent
	}
	if diskPath != "" {
		if usage, err := disk.UsageWithContext(ctx, diskPath); err == nil {
			out.DiskPath = diskPath
			out.DiskPercent = usage.UsedPercent
		}
	}

	return out, nil
}

// formatUptime converts uptime seconds to human readable format
func formatUptime(seconds uint64) string {
	duration := time.Duration(seconds) * time.Second

	days := int(duration.Hours() / 24)
	hours := int(duration.Hours()) % 24
	minutes := int(duration.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
