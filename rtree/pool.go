package rtree

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by searches that need the worker pool after Close.
var ErrClosed = errors.New("rtree: tree is closed")

// workerPool runs submitted jobs on a fixed set of goroutines that live as
// long as the tree.
type workerPool struct {
	jobs      chan func()
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newWorkerPool(size int) *workerPool {
	p := &workerPool{
		jobs: make(chan func()),
		quit: make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	return p
}

func (p *workerPool) work() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.quit:
			return
		}
	}
}

// submit hands job to an idle worker, blocking until one is free.
func (p *workerPool) submit(ctx context.Context, job func()) error {
	select {
	case <-p.quit:
		return ErrClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the workers after their current job.
func (p *workerPool) close() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
}
