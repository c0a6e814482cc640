// Package workerpool runs submitted tasks on a fixed number of long-lived
// workers.
//
// Submission never blocks: tasks are appended to an unbounded queue and
// picked up by the first idle worker. Close stops accepting new tasks, lets
// the workers drain everything already queued, and waits for all of them to
// exit. A task that panics is recovered and logged; the worker that ran it
// keeps serving.
package workerpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ErrPoolClosed is returned by Execute after Close has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// ConfigError reports an invalid pool construction parameter.
type ConfigError struct {
	Size int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid worker pool size %d: must be > 0", e.Size)
}

// Task is a unit of work executed by exactly one worker.
type Task func()

// Pool is a fixed-size set of workers consuming a shared task queue.
//
// Thread safety:
// Execute, Close and the counters are safe for concurrent use.
type Pool struct {
	size int

	// mu guards queue and closed; cond wakes idle workers.
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Task
	closed bool

	workers   conc.WaitGroup
	closeOnce sync.Once

	completed atomic.Uint64
	panicked  atomic.Uint64
}

// New starts a pool with size workers.
//
// Returns a *ConfigError if size is not positive.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, &ConfigError{Size: size}
	}

	p := &Pool{size: size}
	p.cond = sync.NewCond(&p.mu)

	for id := 0; id < size; id++ {
		p.workers.Go(func() {
			p.work(id)
		})
	}

	logger.Debug("Worker pool started with %d worker(s)", size)
	return p, nil
}

// Execute enqueues task and returns immediately.
func (p *Pool) Execute(task Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Close stops accepting tasks and blocks until every queued task has run
// and every worker has exited. Calling Close more than once is a no-op.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		pending := len(p.queue)
		p.mu.Unlock()

		logger.Debug("Worker pool closing: draining %d queued task(s)", pending)
		p.cond.Broadcast()
		p.workers.Wait()
		logger.Debug("Worker pool closed: %d task(s) completed, %d panicked",
			p.completed.Load(), p.panicked.Load())
	})
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Pending returns the number of tasks waiting for a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Completed returns the number of tasks that finished, including those that
// panicked.
func (p *Pool) Completed() uint64 {
	return p.completed.Load()
}

// Panicked returns the number of tasks that panicked.
func (p *Pool) Panicked() uint64 {
	return p.panicked.Load()
}

func (p *Pool) work(id int) {
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.run(id, task)
	}
}

// next blocks until a task is available. It returns false once the pool is
// closed and the queue is empty.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 {
		if p.closed {
			return nil, false
		}
		p.cond.Wait()
	}

	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return task, true
}

func (p *Pool) run(id int, task Task) {
	var catcher panics.Catcher
	catcher.Try(task)

	if r := catcher.Recovered(); r != nil {
		p.panicked.Add(1)
		logger.Error("Worker %d recovered from panic: %v\n%s", id, r.Value, r.Stack)
	}
	p.completed.Add(1)
}
