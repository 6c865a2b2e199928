package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("parallel: pool closed")

// WorkerPool runs batches of indexed tasks on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, so uneven tasks still keep every worker busy.
//
// Thread safety: WorkerPool is safe for concurrent use. Run must not be
// called from inside a task.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Run calls fn(i) for every i in [0, n) and waits for all calls to return.
// Once a task fails, tasks that have not started are skipped. The error of
// the lowest failing index is returned.
func (p *WorkerPool) Run(n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if !p.running.Load() {
		return ErrClosed
	}

	var (
		completion sync.WaitGroup
		failed     atomic.Bool
		errs       = make([]error, n)
	)
	completion.Add(n)

	for i := range n {
		task := func() {
			defer completion.Done()
			if failed.Load() {
				return
			}
			if err := fn(i); err != nil {
				errs[i] = err
				failed.Store(true)
			}
		}

		select {
		case p.workQueues[i%p.workers] <- task:
		case <-p.done:
			errs[i] = ErrClosed
			failed.Store(true)
			completion.Done()
		}
	}

	completion.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ForRange splits [0, n) into contiguous chunks of at most grain items and
// runs fn(lo, hi) for each chunk on the pool. A grain of 0 or less spreads
// the range over four chunks per worker.
func (p *WorkerPool) ForRange(n, grain int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if grain <= 0 {
		grain = max((n+p.workers*4-1)/(p.workers*4), 1)
	}
	chunks := (n + grain - 1) / grain
	return p.Run(chunks, func(c int) error {
		lo := c * grain
		return fn(lo, min(lo+grain, n))
	})
}

// Close stops the workers after the queued tasks have run.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
