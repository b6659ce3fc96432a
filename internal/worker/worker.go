package worker

import (
	"context"
	"log/slog"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs a fixed number of workers over a buffered job queue.
type Pool[T any] struct {
	name       string
	numWorkers int
	jobs       chan T
	quit       chan struct{}
	processor  ProcessFunc[T]
	wg         sync.WaitGroup
	stopOnce   sync.Once

	mu     sync.RWMutex
	closed bool
}

func NewPool[T any](name string, numWorkers int, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool[T]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		quit:       make(chan struct{}),
		processor:  processor,
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				slog.Error("job failed", "pool", p.name, "worker", id, "error", err)
			}
		}
	}
}

// Submit blocks until the job is queued. It reports false once the pool is
// stopping.
func (p *Pool[T]) Submit(job T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	case <-p.quit:
		return false
	}
}

// TrySubmit queues the job only if there is room right now.
func (p *Pool[T]) TrySubmit(job T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for workers to drain it.
func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
