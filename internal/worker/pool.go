// Package worker runs background tasks on a fixed number of goroutines fed by
// a bounded queue.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull  = errors.New("worker queue is full")
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Task is a unit of background work. ctx is cancelled when the pool is
// stopped without enough time to drain.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool. Submit never blocks.
type Pool struct {
	queue  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewPool starts concurrency workers reading from a queue of queueSize slots.
func NewPool(concurrency, queueSize int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	p.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go p.run(i)
	}
	slog.Info("worker pool started", "concurrency", concurrency, "queue_size", queueSize)
	return p
}

// Submit enqueues t. It returns ErrQueueFull when no slot is free and
// ErrPoolClosed after Stop.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new tasks and waits for queued ones to finish. If ctx expires
// first, running tasks see their context cancelled and Stop returns ctx.Err()
// once the workers exit.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		p.execute(id, t)
	}
}

func (p *Pool) execute(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker task panicked", "worker", id, "panic", r)
		}
	}()
	t(p.ctx)
}
