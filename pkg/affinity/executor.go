package affinity

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wkimage/pkg/observability"
)

// ErrClosed is returned when work is submitted to a closed executor.
var ErrClosed = errors.New("affinity: executor closed")

// PanicError carries a panic recovered from a job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("affinity: job panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Executor serializes jobs onto one OS thread.
type Executor struct {
	name   string
	logger *log.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*job
	closed bool

	done chan struct{}
}

type job struct {
	fn       func() error
	queued   time.Time
	err      error
	panicked *PanicError
	done     chan struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for worker lifecycle messages.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New starts an executor. The name labels logs and metrics.
func New(name string, opts ...Option) *Executor {
	e := &Executor{
		name:   name,
		logger: log.New(io.Discard),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cond = sync.NewCond(&e.mu)

	started := make(chan struct{})
	go e.run(started)
	<-started
	return e
}

// Name returns the executor's name.
func (e *Executor) Name() string {
	return e.name
}

// Invoke runs fn on the worker thread and blocks until it returns.
func (e *Executor) Invoke(fn func() error) error {
	j := &job{fn: fn, queued: time.Now(), done: make(chan struct{})}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.queue = append(e.queue, j)
	depth := len(e.queue)
	e.cond.Signal()
	e.mu.Unlock()

	observability.Executor().OnJobQueued(e.name, depth)

	<-j.done
	if j.panicked != nil {
		panic(j.panicked)
	}
	return j.err
}

// Call runs fn on e's worker thread and returns its result.
func Call[T any](e *Executor, fn func() (T, error)) (T, error) {
	var out T
	err := e.Invoke(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// Apply runs fn(arg) on e's worker thread and returns its result.
func Apply[A, T any](e *Executor, fn func(A) (T, error), arg A) (T, error) {
	return Call(e, func() (T, error) { return fn(arg) })
}

// Pending reports the number of jobs waiting to run.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Close stops accepting jobs, waits for queued jobs to finish and stops the
// worker. It is safe to call more than once.
func (e *Executor) Close() error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.cond.Broadcast()
	}
	e.mu.Unlock()
	<-e.done
	return nil
}

func (e *Executor) run(started chan<- struct{}) {
	// The worker owns its thread until the process exits; the thread is
	// never handed back to the scheduler.
	runtime.LockOSThread()
	defer close(e.done)

	e.logger.Debug("executor started", "name", e.name)
	close(started)

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			e.logger.Debug("executor stopped", "name", e.name)
			return
		}
		j := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.execute(j)
	}
}

func (e *Executor) execute(j *job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			j.panicked = &PanicError{Value: r, Stack: debug.Stack()}
			e.logger.Error("job panicked", "name", e.name, "panic", r)
			j.err = j.panicked
		}
		observability.Executor().OnJobDone(e.name, start.Sub(j.queued), time.Since(start), j.err)
		close(j.done)
	}()
	j.err = j.fn()
}

