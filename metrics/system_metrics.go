// system_metrics.go provides collection and export of runtime system metrics
// including goroutine count, memory usage, GC statistics, CPU usage, disk
// usage, and configurable store-level metrics (chain count, total headers
// stored).
package metrics

import (
	"encoding/json"
	"runtime"
	"sync"
	"time"
)

// MemStats holds key memory statistics from the Go runtime.
type MemStats struct {
	// HeapAlloc is the number of bytes of allocated heap objects.
	HeapAlloc uint64 `json:"heapAlloc"`

	// TotalAlloc is the cumulative bytes allocated for heap objects.
	TotalAlloc uint64 `json:"totalAlloc"`

	// Sys is the total bytes of memory obtained from the OS.
	Sys uint64 `json:"sys"`

	// NumGC is the number of completed GC cycles.
	NumGC uint64 `json:"numGC"`
}

// DiskStats holds disk usage information.
type DiskStats struct {
	// Total is the total capacity of the disk in bytes.
	Total uint64 `json:"total"`

	// Used is the number of bytes in use on the disk.
	Used uint64 `json:"used"`

	// Free is the number of bytes available on the disk.
	Free uint64 `json:"free"`
}

// ChainCountFunc is a callback that returns the number of chains the daemon
// is currently serving.
type ChainCountFunc func() int

// TotalHeadersFunc is a callback that returns the total number of headers
// stored across every served chain.
type TotalHeadersFunc func() uint64

// DiskUsageFunc is a callback that returns disk usage for a given path.
type DiskUsageFunc func(path string) DiskStats

// SystemMetrics tracks key system-level metrics for the header store daemon.
type SystemMetrics struct {
	mu        sync.RWMutex
	startTime time.Time
	cpu       *CPUTracker

	// Cached snapshot from the last Collect() call.
	memStats    MemStats
	goroutines  int
	lastCollect time.Time

	// Configurable callbacks for store-level metrics.
	chainCountFn   ChainCountFunc
	totalHeadersFn TotalHeadersFunc
	diskUsageFn    DiskUsageFunc
}

// NewSystemMetrics creates a new SystemMetrics instance. Callbacks default
// to no-op functions returning zero values; use Set*Func methods to override.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		startTime:      time.Now(),
		cpu:            NewCPUTracker(),
		chainCountFn:   func() int { return 0 },
		totalHeadersFn: func() uint64 { return 0 },
		diskUsageFn:    func(path string) DiskStats { return DiskStats{} },
	}
}

// SetChainCountFunc sets the callback for retrieving the number of chains
// currently served.
func (sm *SystemMetrics) SetChainCountFunc(fn ChainCountFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.chainCountFn = fn
	}
}

// SetTotalHeadersFunc sets the callback for retrieving the total header
// count across all served chains.
func (sm *SystemMetrics) SetTotalHeadersFunc(fn TotalHeadersFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.totalHeadersFn = fn
	}
}

// SetDiskUsageFunc sets the callback for retrieving disk usage.
func (sm *SystemMetrics) SetDiskUsageFunc(fn DiskUsageFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if fn != nil {
		sm.diskUsageFn = fn
	}
}

// Collect takes a snapshot of the current system metrics from the Go
// runtime and samples a new CPU usage reading. Call this periodically
// (e.g. every few seconds) to update cached values.
func (sm *SystemMetrics) Collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	sm.cpu.RecordCPU()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.memStats = MemStats{
		HeapAlloc:  ms.HeapAlloc,
		TotalAlloc: ms.TotalAlloc,
		Sys:        ms.Sys,
		NumGC:      uint64(ms.NumGC),
	}
	sm.goroutines = runtime.NumGoroutine()
	sm.lastCollect = time.Now()
}

// GoRoutineCount returns the number of goroutines at the last Collect() call.
// If Collect() has not been called, reads the current goroutine count directly.
func (sm *SystemMetrics) GoRoutineCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.goroutines == 0 {
		return runtime.NumGoroutine()
	}
	return sm.goroutines
}

// MemoryUsage returns the memory statistics from the last Collect() call.
// If Collect() has not been called, performs a live read.
func (sm *SystemMetrics) MemoryUsage() MemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if sm.lastCollect.IsZero() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		return MemStats{
			HeapAlloc:  ms.HeapAlloc,
			TotalAlloc: ms.TotalAlloc,
			Sys:        ms.Sys,
			NumGC:      uint64(ms.NumGC),
		}
	}
	return sm.memStats
}

// CPUUsagePercent returns the process CPU utilization percentage sampled at
// the last Collect() call, per ReadCPUStats's /proc/self/stat accounting.
func (sm *SystemMetrics) CPUUsagePercent() float64 {
	return sm.cpu.Usage()
}

// DiskUsage returns disk usage statistics for the given path by invoking
// the configured disk usage callback.
func (sm *SystemMetrics) DiskUsage(path string) DiskStats {
	sm.mu.RLock()
	fn := sm.diskUsageFn
	sm.mu.RUnlock()
	return fn(path)
}

// UptimeSeconds returns the number of seconds since the SystemMetrics
// instance was created.
func (sm *SystemMetrics) UptimeSeconds() float64 {
	return time.Since(sm.startTime).Seconds()
}

// ChainCount returns the number of chains currently served by invoking the
// callback.
func (sm *SystemMetrics) ChainCount() int {
	sm.mu.RLock()
	fn := sm.chainCountFn
	sm.mu.RUnlock()
	return fn()
}

// TotalHeaders returns the total number of headers stored across every
// served chain by invoking the callback.
func (sm *SystemMetrics) TotalHeaders() uint64 {
	sm.mu.RLock()
	fn := sm.totalHeadersFn
	sm.mu.RUnlock()
	return fn()
}

// metricsSnapshot is the internal type used for JSON serialization of all
// system metrics.
type metricsSnapshot struct {
	Goroutines   int      `json:"goroutines"`
	Memory       MemStats `json:"memory"`
	CPUPercent   float64  `json:"cpuPercent"`
	UptimeSec    float64  `json:"uptimeSeconds"`
	ChainCount   int      `json:"chainCount"`
	TotalHeaders uint64   `json:"totalHeaders"`
	CollectedAt  string   `json:"collectedAt"`
}

// ExportJSON serializes all current metrics as a JSON object. It performs
// a fresh Collect() before exporting to ensure up-to-date values.
func (sm *SystemMetrics) ExportJSON() ([]byte, error) {
	sm.Collect()

	sm.mu.RLock()
	memSnap := sm.memStats
	goroutineSnap := sm.goroutines
	sm.mu.RUnlock()

	snapshot := metricsSnapshot{
		Goroutines:   goroutineSnap,
		Memory:       memSnap,
		CPUPercent:   sm.CPUUsagePercent(),
		UptimeSec:    sm.UptimeSeconds(),
		ChainCount:   sm.ChainCount(),
		TotalHeaders: sm.TotalHeaders(),
		CollectedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	return json.Marshal(snapshot)
}

// LastCollectTime returns the time of the last Collect() call, or zero
// if Collect() has never been called.
func (sm *SystemMetrics) LastCollectTime() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastCollect
}

// GoVersion returns the Go runtime version string.
func GoVersion() string {
	return runtime.Version()
}

// NumCPU returns the number of logical CPUs available.
func NumCPU() int {
	return runtime.NumCPU()
}

// GOARCH returns the target architecture.
func GOARCH() string {
	return runtime.GOARCH
}

// GOOS returns the target operating system.
func GOOS() string {
	return runtime.GOOS
}
