package system

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health statuses
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthReport is served at the health endpoint
type HealthReport struct {
	Status    string      `json:"status"`
	Hostname  string      `json:"hostname"`
	Uptime    string      `json:"uptime"`
	CPU       CPUStats    `json:"cpu"`
	Memory    MemoryStats `json:"memory"`
	Sessions  int         `json:"mounted_sessions"`
	Breaker   string      `json:"api_breaker"`
	Timestamp time.Time   `json:"timestamp"`
}

// CPUStats represents CPU usage statistics
type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Total        uint64  `json:"total_bytes"`
	Used         uint64  `json:"used_bytes"`
	Available    uint64  `json:"available_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// SessionCounter reports how many visitor sessions are in memory
type SessionCounter interface {
	Len() int
}

// BreakerReporter reports the remote API circuit breaker state
type BreakerReporter interface {
	BreakerState() string
}

// Collector builds health reports
type Collector struct {
	sessions SessionCounter
	breaker  BreakerReporter
	started  time.Time
}

// NewCollector creates a new health collector
func NewCollector(sessions SessionCounter, breaker BreakerReporter) *Collector {
	return &Collector{sessions: sessions, breaker: breaker, started: time.Now()}
}

// Collect gathers host and process statistics
func (c *Collector) Collect() *HealthReport {
	var cpuStats CPUStats
	var memStats MemoryStats

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cpuStats = getCPUStats()
	}()
	go func() {
		defer wg.Done()
		memStats = getMemoryStats()
	}()
	wg.Wait()

	hostname, err := os.Hostname()
	if err != nil {
		slog.Warn("failed to get hostname", "error", err)
		hostname = "unknown"
	}

	report := &HealthReport{
		Status:    StatusOK,
		Hostname:  hostname,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		CPU:       cpuStats,
		Memory:    memStats,
		Breaker:   "disabled",
		Timestamp: time.Now(),
	}
	if c.sessions != nil {
		report.Sessions = c.sessions.Len()
	}
	if c.breaker != nil {
		report.Breaker = c.breaker.BreakerState()
	}
	if report.Breaker == "open" {
		report.Status = StatusDegraded
	}

	return report
}

func getCPUStats() CPUStats {
	cores, err := cpu.Counts(true)
	if err != nil {
		slog.Warn("failed to get CPU count", "error", err)
		cores = 1
	}

	// 0 interval compares against the previous call instead of blocking
	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		slog.Warn("failed to get CPU usage", "error", err)
		return CPUStats{Cores: cores}
	}

	return CPUStats{UsagePercent: percentages[0], Cores: cores}
}

func getMemoryStats() MemoryStats {
	vm, err := mem.VirtualMemory()
	if err != nil {
		slog.Warn("failed to get memory stats", "error", err)
		return MemoryStats{}
	}

	return MemoryStats{
		Total:        vm.Total,
		Used:         vm.Used,
		Available:    vm.Available,
		UsagePercent: vm.UsedPercent,
	}
}
