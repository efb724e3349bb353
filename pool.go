package mdsci

import "runtime"

// Worker sizing constants.
const (
	// MinWorkers ensures at least one render is in flight.
	MinWorkers = 1

	// MaxWorkers caps concurrent toolchain invocations; each one runs
	// a latex and a dvisvgm child process.
	MaxWorkers = 8

	// cpuDivisor leaves headroom for the toolchain child processes.
	cpuDivisor = 2
)

// ResolveWorkers determines how many renders run concurrently.
// Priority: explicit workers > GOMAXPROCS-based calculation.
// Exported for use by servers and CLIs.
func ResolveWorkers(workers int) int {
	// Explicit value takes priority
	if workers > 0 {
		return workers
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs for containers)
	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
