// Package parallel provides chunked parallel iteration helpers used by the
// convolution and matrix kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how work is split across goroutines.
type Config struct {
	Workers  int // Number of worker goroutines.
	MinChunk int // Below this many items the loop runs sequentially.
}

// DefaultConfig sizes the worker pool to the available CPUs.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinChunk: 64,
	}
}

// For runs f(i) for every i in [0, n), splitting the range into contiguous
// chunks across the configured workers. Small ranges run on the calling
// goroutine to avoid scheduling overhead.
func For(n int, cfg Config, f func(i int)) {
	if cfg.Workers <= 1 || n < cfg.MinChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := (n + cfg.Workers - 1) / cfg.Workers
	if chunk < cfg.MinChunk {
		chunk = cfg.MinChunk
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
