package engine

import (
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// workerCount picks the extraction worker pool size: available hardware
// parallelism, refined to a physical-core count via cpuid.CPU.ThreadsPerCore
// when hyperthreading would otherwise make runtime.NumCPU() overcount usable
// CPU-bound workers.
func workerCount(override int) int {
	if override > 0 {
		return override
	}

	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}

	if cpuid.CPU.ThreadsPerCore > 1 {
		cores := n / cpuid.CPU.ThreadsPerCore
		if cores >= 1 {
			n = cores
		}
	}

	return n
}

// queueDepth sizes the bounded worker-to-sink channel: proportional to the
// worker count, but capped so that, combined with the largest plausible
// term-frequency map per in-flight document, total buffered memory stays a
// small fraction of what github.com/pbnjay/memory reports as installed --
// bounding memory growth when extraction outpaces flushing.
func queueDepth(workers int) int {
	depth := workers * 4
	if depth < 8 {
		depth = 8
	}

	const bytesPerQueuedDoc = 64 << 10 // generous per-document tf-map estimate
	totalMem := memory.TotalMemory()
	if totalMem > 0 {
		budget := totalMem / 256 // at most ~0.4% of system memory queued in flight
		maxByMemory := int(budget / bytesPerQueuedDoc)
		if maxByMemory >= 1 && depth > maxByMemory {
			depth = maxByMemory
		}
	}

	if depth < 1 {
		depth = 1
	}
	return depth
}
