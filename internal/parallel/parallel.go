// Package parallel provides parallel execution utilities for Spindle's
// dense kernels.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// ForErr executes f(i) for i in [0, n) with optional parallelism, stopping
// at the first error. Falls back to sequential execution if parallelism is
// disabled or n is too small.
func ForErr(n int, f func(i int) error, cfg Config) error {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		// Sequential fallback.
		for i := 0; i < n; i++ {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		s, e := start, min(start+chunkSize, n)
		g.Go(func() error {
			for i := s; i < e; i++ {
				if err := f(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Kernels that cannot fail use this instead of ForErr.
func For(n int, f func(i int), cfg Config) {
	//nolint:errcheck // f never returns an error.
	_ = ForErr(n, func(i int) error {
		f(i)
		return nil
	}, cfg)
}
