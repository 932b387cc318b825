package parallel

import (
	"sync"
	"testing"
)

func TestParallelize(t *testing.T) {
	t.Run("Covers every index exactly once", func(t *testing.T) {
		const items = 1000
		counts := make([]int, items)
		var mu sync.Mutex

		Parallelize(items, func(start, end int) {
			mu.Lock()
			defer mu.Unlock()
			for i := start; i < end; i++ {
				counts[i]++
			}
		})

		for i, c := range counts {
			if c != 1 {
				t.Fatalf("index %d handled %d times, want 1", i, c)
			}
		}
	})

	t.Run("Zero items never calls fn", func(t *testing.T) {
		called := false
		Parallelize(0, func(start, end int) {
			called = true
		})
		if called {
			t.Error("fn must not run for zero items")
		}
	})
}

func TestParallelizeWithThreshold(t *testing.T) {
	t.Run("Below threshold runs sequentially in one call", func(t *testing.T) {
		var calls [][2]int
		ParallelizeWithThreshold(10, 64, func(start, end int) {
			calls = append(calls, [2]int{start, end})
		})
		if len(calls) != 1 {
			t.Fatalf("expected a single sequential call, got %d", len(calls))
		}
		if calls[0] != [2]int{0, 10} {
			t.Errorf("expected range [0, 10), got %v", calls[0])
		}
	})

	t.Run("Above threshold still covers every index", func(t *testing.T) {
		const items = 200
		counts := make([]int, items)
		var mu sync.Mutex

		ParallelizeWithThreshold(items, 64, func(start, end int) {
			mu.Lock()
			defer mu.Unlock()
			for i := start; i < end; i++ {
				counts[i]++
			}
		})

		for i, c := range counts {
			if c != 1 {
				t.Fatalf("index %d handled %d times, want 1", i, c)
			}
		}
	})
}
