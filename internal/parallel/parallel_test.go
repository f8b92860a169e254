package parallel

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestForSequentialFallback(t *testing.T) {
	cfg := Config{Enabled: false}

	var count atomic.Int64
	For(100, func(i int) {
		count.Add(1)
	}, cfg)

	if count.Load() != 100 {
		t.Errorf("expected 100 iterations, got %d", count.Load())
	}
}

func TestForParallel(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	results := make([]int64, 1000)
	For(1000, func(i int) {
		atomic.AddInt64(&results[i], int64(i))
	}, cfg)

	for i, v := range results {
		if v != int64(i) {
			t.Fatalf("index %d = %d, want %d", i, v, i)
		}
	}
}

func TestForErrPropagatesError(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 2, MinChunkSize: 1}
	boom := errors.New("boom")

	err := ForErr(64, func(i int) error {
		if i == 13 {
			return boom
		}
		return nil
	}, cfg)

	if !errors.Is(err, boom) {
		t.Errorf("ForErr should surface the worker error, got %v", err)
	}
}

func TestForErrSequentialStopsEarly(t *testing.T) {
	cfg := Config{Enabled: false}
	boom := errors.New("boom")

	var count int
	err := ForErr(10, func(i int) error {
		count++
		if i == 3 {
			return boom
		}
		return nil
	}, cfg)

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if count != 4 {
		t.Errorf("sequential mode should stop at the failing index, ran %d", count)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Error("NumWorkers should be at least 1")
	}
	if cfg.MinChunkSize < 1 {
		t.Error("MinChunkSize should be at least 1")
	}
}
