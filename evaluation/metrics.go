package evaluation

import (
	"runtime"
	"time"
)

// StageTimings accumulates wall time per stage of the evaluation loop.
type StageTimings struct {
	Load      time.Duration `json:"load"`
	Stack     time.Duration `json:"stack"`
	Rasterize time.Duration `json:"rasterize"`
	InferLane time.Duration `json:"infer_lane"`
	InferBox  time.Duration `json:"infer_boxes"`
	Score     time.Duration `json:"score"`
}

// track starts timing a stage and returns the function that stops it.
func track(d *time.Duration) func() {
	start := time.Now()
	return func() {
		*d += time.Since(start)
	}
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

func readMemory() MemoryMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryMetrics{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		HeapAllocBytes:  m.HeapAlloc,
	}
}
