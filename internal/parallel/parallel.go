// Package parallel provides goroutine fan-out for the hot loops of the
// classifier: matrix multiplication, convolution, and pooling.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Below this many items the loop runs sequentially.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// For executes f(i) for i in [0, n), splitting the index range into one
// contiguous span per worker. Iterations must be independent: f may not
// write state shared across indices.
//
// Falls back to a plain loop when parallelism is disabled or n is below
// MinChunkSize.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers <= 1 {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	workers := cfg.NumWorkers
	if spans := (n + cfg.MinChunkSize - 1) / cfg.MinChunkSize; workers > spans {
		workers = spans
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		// Integer split: span w is [w*n/workers, (w+1)*n/workers), which
		// covers [0, n) exactly with spans differing in size by at most 1.
		lo, hi := w*n/workers, (w+1)*n/workers
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				f(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}
