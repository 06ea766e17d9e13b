package system

// HostInfo describes the machine the server runs on
type HostInfo struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	KernelVersion string  `json:"kernel_version"`
	Uptime        uint64  `json:"uptime"`
	UptimeHuman   string  `json:"uptime_human"`
	LoadAvg1      float64 `json:"load_avg_1"`
	MemoryPercent float64 `json:"memory_used_percent"`
	DiskPath      string  `json:"disk_path,omitempty"`
	DiskPercent   float64 `json:"disk_used_percent,omitempty"`
}
