package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task errors.
var (
	// ErrTaskTimeout rejects a single task whose deadline passed. The worker
	// is not force-killed; the computation finishes and its result is dropped.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrWorkerCrashed rejects tasks queued to a worker that panicked; that
	// worker's queue is lost.
	ErrWorkerCrashed = errors.New("worker crashed")
	// ErrPoolClosed rejects submissions after Close, or when every worker
	// has crashed.
	ErrPoolClosed = errors.New("worker pool closed")
)

// DefaultTaskTimeout bounds tasks that do not set their own.
const DefaultTaskTimeout = 30 * time.Second

// Task is one offloaded computation.
type Task struct {
	ID      string
	Kind    string
	Timeout time.Duration
	Fn      func(ctx context.Context) (any, error)
}

// Result pairs a task id with its outcome.
type Result struct {
	TaskID string
	Value  any
	Err    error
}

// Future resolves to one task's result.
type Future struct {
	taskID  string
	timeout time.Duration
	ch      chan Result
}

// Wait blocks for the result, the task's timeout, or context cancellation,
// whichever comes first. A timeout abandons only this task. A result that
// is already in is returned even when the context has expired.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case res := <-f.ch:
		return res.Value, res.Err
	default:
	}
	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	select {
	case res := <-f.ch:
		return res.Value, res.Err
	case <-timer.C:
		return nil, fmt.Errorf("%w: task %s after %s", ErrTaskTimeout, f.taskID, f.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pool is a fixed-size worker pool for CPU-heavy fact computation. Its size
// is independent of file count. A crashed worker degrades capacity for the
// rest of the run; the pool does not respawn workers.
type Pool struct {
	queues  []chan submission
	dead    []atomic.Bool
	next    atomic.Uint64
	alive   atomic.Int64
	closed  atomic.Bool
	wg      sync.WaitGroup
	logger  *slog.Logger
	submitM sync.Mutex
}

type submission struct {
	task   Task
	future *Future
}

// NewPool starts size workers. Size is clamped to at least 1.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pool{
		queues: make([]chan submission, size),
		dead:   make([]atomic.Bool, size),
		logger: logger,
	}
	p.alive.Store(int64(size))
	for i := range p.queues {
		p.queues[i] = make(chan submission, 16)
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit assigns a task to a worker queue round-robin, skipping dead
// workers, and returns its future.
func (p *Pool) Submit(task Task) (*Future, error) {
	if task.Timeout <= 0 {
		task.Timeout = DefaultTaskTimeout
	}
	future := &Future{taskID: task.ID, timeout: task.Timeout, ch: make(chan Result, 1)}

	p.submitM.Lock()
	defer p.submitM.Unlock()
	if p.closed.Load() || p.alive.Load() == 0 {
		return nil, ErrPoolClosed
	}
	for range p.queues {
		idx := int(p.next.Add(1)) % len(p.queues)
		if p.dead[idx].Load() {
			continue
		}
		p.queues[idx] <- submission{task: task, future: future}
		return future, nil
	}
	return nil, ErrPoolClosed
}

// Close stops accepting work and waits for workers to drain.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.submitM.Lock()
	for _, q := range p.queues {
		close(q)
	}
	p.submitM.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker(idx int) {
	defer p.wg.Done()
	queue := p.queues[idx]
	for sub := range queue {
		p.run(idx, sub)
		if p.dead[idx].Load() {
			// The queue is lost with the worker. Keep rejecting until
			// Close: a Submit racing the dead flag may still route here,
			// and its future must resolve rather than park.
			p.reject(queue)
			return
		}
	}
}

// run executes one task, converting a panic into a worker crash.
func (p *Pool) run(idx int, sub submission) {
	defer func() {
		if rec := recover(); rec != nil {
			p.dead[idx].Store(true)
			p.alive.Add(-1)
			p.logger.Error("worker crashed, running degraded",
				"worker", idx, "task", sub.task.ID, "panic", rec)
			sub.future.ch <- Result{
				TaskID: sub.task.ID,
				Err:    fmt.Errorf("%w: worker %d: %v", ErrWorkerCrashed, idx, rec),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), sub.task.Timeout)
	defer cancel()
	value, err := sub.task.Fn(ctx)
	sub.future.ch <- Result{TaskID: sub.task.ID, Value: value, Err: err}
}

// reject consumes a dead worker's queue until Close, failing every
// submission with ErrWorkerCrashed.
func (p *Pool) reject(queue chan submission) {
	for sub := range queue {
		sub.future.ch <- Result{
			TaskID: sub.task.ID,
			Err:    fmt.Errorf("%w: queue lost", ErrWorkerCrashed),
		}
	}
}

// Alive returns the number of workers still running.
func (p *Pool) Alive() int {
	return int(p.alive.Load())
}
