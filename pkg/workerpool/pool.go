// Package workerpool runs tasks on a fixed number of goroutines.
//
//	pool := workerpool.New(8)
//	for _, key := range keys {
//	    pool.Submit(ctx, func(ctx context.Context) error { return disk.Delete(ctx, key) })
//	}
//	err := pool.Wait()
//
// Submit blocks while every worker is busy, so callers never hold more than
// size tasks in flight.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Submit after Wait.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Task is one unit of work.
type Task func(ctx context.Context) error

type job struct {
	ctx  context.Context
	task Task
}

// Pool is a bounded goroutine pool that collects task errors.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
	errs   []error
}

// New starts size workers. size below 1 is treated as 1.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{jobs: make(chan job)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Submit hands task to the next free worker. It returns ctx.Err() when ctx
// ends first.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- job{ctx: ctx, task: task}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait closes the pool, waits for running tasks and returns their errors
// joined. It must not run concurrently with Submit.
func (p *Pool) Wait() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := run(j); err != nil {
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	}
}

// run turns a panicking task into an error so one bad task cannot take the
// worker down.
func run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: task panicked: %v", r)
		}
	}()
	return j.task(j.ctx)
}
