// Package worker runs CPU-bound jobs on a bounded set of goroutines so that
// request goroutines only dispatch and wait.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/metrics"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker: pool closed")

// Pool bounds the number of concurrently running jobs.
type Pool struct {
	sem  *semaphore.Weighted
	size int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New returns a pool running at most size jobs at once.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

// Submit runs fn on the pool and returns its result. If ctx ends while the
// job is still queued the job is dropped; once started it always runs to
// completion, even if the caller has already returned with ctx.Err().
// A panic in fn is returned as an error.
func Submit[T any](ctx context.Context, p *Pool, fn func() T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	type result struct {
		v   T
		err error
	}
	res := make(chan result, 1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			metrics.WorkerDropped.Inc()
			res <- result{err: err}
			return
		}
		defer p.sem.Release(1)
		metrics.TrackWorkerJob(true)
		defer metrics.TrackWorkerJob(false)
		v, err := run(fn)
		res <- result{v: v, err: err}
	}()

	select {
	case r := <-res:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func run[T any](fn func() T) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: job panicked: %v", r)
		}
	}()
	return fn(), nil
}

// Close rejects new jobs and waits for queued and running ones, or for ctx.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
