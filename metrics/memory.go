package metrics

import (
	"runtime"
	"sync/atomic"
)

const mib = 1024 * 1024

var peak atomic.Uint64

// CurrentUsage samples the live heap in bytes and folds it into the peak.
func CurrentUsage() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	observe(ms.HeapAlloc)
	return ms.HeapAlloc
}

// PeakUsage returns the largest heap size seen by CurrentUsage so far.
func PeakUsage() uint64 {
	return peak.Load()
}

func observe(v uint64) {
	for {
		old := peak.Load()
		if v <= old || peak.CompareAndSwap(old, v) {
			return
		}
	}
}

// Delta returns after-before, or 0 when the heap shrank in between.
func Delta(before, after uint64) uint64 {
	if after <= before {
		return 0
	}
	return after - before
}

func ToMB(bytes uint64) float64 {
	return float64(bytes) / mib
}
