// Package taskqueue runs background tasks with bounded concurrency. Tasks
// are dispatched in submission order and a failing or panicking task never
// takes a worker down with it.
package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"

	"trimsync/internal/logging"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("task queue closed")

// Task is one unit of background work. A non-nil error is logged; it does
// not affect other tasks or the pool itself.
type Task func(ctx context.Context) error

type queuedTask struct {
	name string
	run  Task
}

// Pool is a fixed-size worker pool over a FIFO task list.
type Pool struct {
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cond    *sync.Cond
	pending []queuedTask
	closed  bool
}

// NewPool starts a pool with the given number of workers. Values below one
// fall back to a single worker, which serializes all background work.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := &Pool{
		logger: logger.With(logging.String(logging.FieldComponent, "taskqueue")),
		ctx:    ctx,
		cancel: cancel,
	}
	pool.cond = sync.NewCond(&pool.mu)

	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}
	return pool
}

// Submit enqueues a task for execution in FIFO order.
func (p *Pool) Submit(name string, task Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.pending = append(p.pending, queuedTask{name: name, run: task})
	p.cond.Signal()
	return nil
}

// Close stops accepting work, cancels the context passed to running tasks,
// and waits for in-flight tasks to return. Pending tasks that never started
// are discarded; callers persist their own state and re-enqueue on restart.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	dropped := len(p.pending)
	p.pending = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	if dropped > 0 {
		p.logger.Info("discarded pending tasks on shutdown", logging.Int("count", dropped))
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.execute(task)
	}
}

func (p *Pool) next() (queuedTask, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pending) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.pending) == 0 {
		return queuedTask{}, false
	}
	task := p.pending[0]
	p.pending = p.pending[1:]
	return task, true
}

func (p *Pool) execute(task queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				logging.String("task", task.name),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
		}
	}()

	if err := task.run(p.ctx); err != nil {
		p.logger.Error("task failed",
			logging.String("task", task.name),
			logging.Error(err))
	}
}
