package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		expected := runtime.GOMAXPROCS(0)
		if pool.Workers() != expected {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d (GOMAXPROCS)", n, pool.Workers(), expected)
		}
		pool.Close()
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestWorkerPool_Run(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	const numTasks = 100
	var counter atomic.Int64
	seen := make([]atomic.Bool, numTasks)

	err := pool.Run(numTasks, func(i int) error {
		counter.Add(1)
		seen[i].Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counter.Load() != numTasks {
		t.Errorf("counter = %d, want %d", counter.Load(), numTasks)
	}
	for i := range seen {
		if !seen[i].Load() {
			t.Errorf("task %d did not run", i)
		}
	}
}

func TestWorkerPool_Run_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	if err := pool.Run(0, func(int) error { called = true; return nil }); err != nil {
		t.Errorf("Run(0) error = %v", err)
	}
	if called {
		t.Error("Run(0) should not call fn")
	}
}

func TestWorkerPool_Run_Error(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	err := pool.Run(50, func(i int) error {
		if i == 7 {
			return fmt.Errorf("task %d failed", i)
		}
		return nil
	})
	if err == nil {
		t.Fatal("Run() should return the task error")
	}
	if err.Error() != "task 7 failed" {
		t.Errorf("Run() error = %q, want %q", err, "task 7 failed")
	}
}

func TestWorkerPool_Run_AfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	err := pool.Run(10, func(int) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Run() after Close error = %v, want ErrClosed", err)
	}
}

func TestWorkerPool_Run_SlowTasks(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	start := time.Now()
	err := pool.Run(8, func(int) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	t.Logf("Elapsed time: %v (work stealing should help)", time.Since(start))
}

// =============================================================================
// ForRange Tests
// =============================================================================

func TestWorkerPool_ForRange(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	tests := []struct {
		n, grain int
	}{
		{1, 0},
		{10, 3},
		{1000, 0},
		{1000, 1},
		{17, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/grain=%d", tt.n, tt.grain), func(t *testing.T) {
			hits := make([]atomic.Int32, tt.n)
			err := pool.ForRange(tt.n, tt.grain, func(lo, hi int) error {
				if lo >= hi {
					return fmt.Errorf("empty chunk [%d,%d)", lo, hi)
				}
				for i := lo; i < hi; i++ {
					hits[i].Add(1)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("ForRange() error = %v", err)
			}
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Errorf("index %d visited %d times, want 1", i, got)
				}
			}
		})
	}
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after Close()")
	}
}

func TestWorkerPool_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	done := make(chan error, 8)
	for range 8 {
		go func() {
			done <- pool.Run(50, func(int) error {
				counter.Add(1)
				return nil
			})
		}()
	}
	for range 8 {
		if err := <-done; err != nil {
			t.Errorf("concurrent Run() error = %v", err)
		}
	}
	if counter.Load() != 400 {
		t.Errorf("counter = %d, want 400", counter.Load())
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for range 5 {
		pool := NewWorkerPool(4)
		_ = pool.Run(100, func(int) error { return nil })
		pool.Close()
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	final := runtime.NumGoroutine()
	if final > baseline+2 {
		t.Errorf("goroutine count: baseline=%d, final=%d (leak detected)", baseline, final)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_Run(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	b.ReportAllocs()
	for b.Loop() {
		_ = pool.Run(256, func(int) error { return nil })
	}
}

func BenchmarkWorkerPool_ForRange(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	data := make([]int32, 1<<16)
	b.ReportAllocs()
	for b.Loop() {
		_ = pool.ForRange(len(data), 0, func(lo, hi int) error {
			for i := lo; i < hi; i++ {
				data[i]++
			}
			return nil
		})
	}
}
