// Package stats samples process-level resource usage during a
// classification run, for the optional --stats report of the classify
// command.
package stats

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// RunStats is the finished report of one collection window.
type RunStats struct {
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	TotalElapsed time.Duration `json:"total_elapsed_ns"`
	ElapsedHuman string        `json:"total_elapsed"`

	// PointsClassified is filled by the caller after the run; zero means
	// unknown and drops the throughput line from the report.
	PointsClassified int `json:"points_classified"`

	Samples []Point `json:"samples"`
	Summary Summary `json:"summary"`
}

// Point is one resource-usage sample.
type Point struct {
	Timestamp      time.Time `json:"timestamp"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`

	HeapAlloc       uint64 `json:"heap_alloc"`
	Sys             uint64 `json:"sys"`
	NumGC           uint32 `json:"num_gc"`
	ProcessRSSBytes uint64 `json:"process_rss_bytes"`

	CPUPercent   float64   `json:"cpu_percent"`
	SystemCPU    []float64 `json:"system_cpu_percent"`
	NumGoroutine int       `json:"num_goroutine"`
}

// Summary aggregates peaks over the whole window.
type Summary struct {
	PeakHeapAlloc    uint64  `json:"peak_heap_alloc"`
	PeakSys          uint64  `json:"peak_sys"`
	PeakProcessRSS   uint64  `json:"peak_process_rss"`
	PeakCPUPercent   float64 `json:"peak_cpu_percent"`
	AvgCPUPercent    float64 `json:"avg_cpu_percent"`
	PeakGoroutines   int     `json:"peak_goroutines"`
	TotalGCCycles    uint32  `json:"total_gc_cycles"`
	SampleCount      int     `json:"sample_count"`
	SampleIntervalMs int64   `json:"sample_interval_ms"`
}

// Collector samples runtime and process stats on a fixed interval.
type Collector struct {
	mu        sync.Mutex
	stats     RunStats
	startTime time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}
	interval  time.Duration
	proc      *process.Process
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		stats:    RunStats{Samples: make([]Point, 0, 256)},
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		proc:     proc,
	}, nil
}

// Start begins sampling in the background.
func (c *Collector) Start() {
	c.startTime = time.Now()
	c.stats.StartTime = c.startTime

	go c.collect()
}

func (c *Collector) collect() {
	defer close(c.doneChan)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-c.stopChan:
			c.sample()
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	point := Point{
		Timestamp:      time.Now(),
		ElapsedSeconds: time.Since(c.startTime).Seconds(),
		HeapAlloc:      memStats.HeapAlloc,
		Sys:            memStats.Sys,
		NumGC:          memStats.NumGC,
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
		point.ProcessRSSBytes = memInfo.RSS
	}
	if cpuPercent, err := c.proc.CPUPercent(); err == nil {
		point.CPUPercent = cpuPercent
	}
	if systemCPU, err := cpu.Percent(0, true); err == nil {
		point.SystemCPU = systemCPU
	}

	c.mu.Lock()
	c.stats.Samples = append(c.stats.Samples, point)
	c.mu.Unlock()
}

// Stop halts sampling and returns the finished report.
func (c *Collector) Stop() RunStats {
	close(c.stopChan)
	<-c.doneChan

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.EndTime = time.Now()
	c.stats.TotalElapsed = c.stats.EndTime.Sub(c.stats.StartTime)
	c.stats.ElapsedHuman = c.stats.TotalElapsed.String()

	var totalCPU float64
	for _, s := range c.stats.Samples {
		if s.HeapAlloc > c.stats.Summary.PeakHeapAlloc {
			c.stats.Summary.PeakHeapAlloc = s.HeapAlloc
		}
		if s.Sys > c.stats.Summary.PeakSys {
			c.stats.Summary.PeakSys = s.Sys
		}
		if s.ProcessRSSBytes > c.stats.Summary.PeakProcessRSS {
			c.stats.Summary.PeakProcessRSS = s.ProcessRSSBytes
		}
		if s.CPUPercent > c.stats.Summary.PeakCPUPercent {
			c.stats.Summary.PeakCPUPercent = s.CPUPercent
		}
		if s.NumGoroutine > c.stats.Summary.PeakGoroutines {
			c.stats.Summary.PeakGoroutines = s.NumGoroutine
		}
		if s.NumGC > c.stats.Summary.TotalGCCycles {
			c.stats.Summary.TotalGCCycles = s.NumGC
		}
		totalCPU += s.CPUPercent
	}
	c.stats.Summary.SampleCount = len(c.stats.Samples)
	c.stats.Summary.SampleIntervalMs = c.interval.Milliseconds()
	if c.stats.Summary.SampleCount > 0 {
		c.stats.Summary.AvgCPUPercent = totalCPU / float64(c.stats.Summary.SampleCount)
	}

	return c.stats
}

// SaveToFile writes a human-readable report.
func (stats *RunStats) SaveToFile(filename string) error {
	var sb strings.Builder

	sb.WriteString("CLASSIFICATION RUN STATISTICS\n")
	sb.WriteString("=============================\n\n")
	sb.WriteString(fmt.Sprintf("Start:    %s\n", stats.StartTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("End:      %s\n", stats.EndTime.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", stats.ElapsedHuman))
	if stats.PointsClassified > 0 && stats.TotalElapsed > 0 {
		sb.WriteString(fmt.Sprintf("Points:   %d (%.0f points/s)\n",
			stats.PointsClassified,
			float64(stats.PointsClassified)/stats.TotalElapsed.Seconds()))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Samples:         %d every %d ms\n",
		stats.Summary.SampleCount, stats.Summary.SampleIntervalMs))
	sb.WriteString(fmt.Sprintf("Peak heap:       %s\n", formatBytes(stats.Summary.PeakHeapAlloc)))
	sb.WriteString(fmt.Sprintf("Peak sys:        %s\n", formatBytes(stats.Summary.PeakSys)))
	sb.WriteString(fmt.Sprintf("Peak RSS:        %s\n", formatBytes(stats.Summary.PeakProcessRSS)))
	sb.WriteString(fmt.Sprintf("Peak CPU:        %.2f%%\n", stats.Summary.PeakCPUPercent))
	sb.WriteString(fmt.Sprintf("Avg CPU:         %.2f%%\n", stats.Summary.AvgCPUPercent))
	sb.WriteString(fmt.Sprintf("Peak goroutines: %d\n", stats.Summary.PeakGoroutines))
	sb.WriteString(fmt.Sprintf("GC cycles:       %d\n", stats.Summary.TotalGCCycles))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("%-12s %-14s %-14s %-10s %-10s\n",
		"Elapsed(s)", "Heap Alloc", "Process RSS", "CPU %", "Goroutines"))
	for _, sample := range stats.Samples {
		sb.WriteString(fmt.Sprintf("%-12.1f %-14s %-14s %-10.1f %-10d\n",
			sample.ElapsedSeconds,
			formatBytes(sample.HeapAlloc),
			formatBytes(sample.ProcessRSSBytes),
			sample.CPUPercent,
			sample.NumGoroutine))
	}

	if err := os.WriteFile(filename, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}

func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
