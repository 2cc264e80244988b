package converter

import (
	stderrors "errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wkimage/pkg/affinity"
	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/native"
)

// ExecutorName labels the engine thread in logs and metrics.
const ExecutorName = "wkhtmltox"

// Runtime owns the engine thread and the process-wide engine state.
//
// The engine corrupts its output when initialized again after a deinit, so
// a Runtime initializes it once, lazily, by creating a keep-alive session on
// the engine thread, and deinitializes it once, in Shutdown. Create one
// Runtime per process and share it.
type Runtime struct {
	engine      native.Engine
	exec        *affinity.Executor
	logger      *log.Logger
	useGraphics bool

	mu        sync.Mutex
	keepAlive *Session
	initErr   error
	shutdown  bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRuntime starts the engine thread. The engine itself is initialized on
// first use.
func NewRuntime(engine native.Engine, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		engine: engine,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.exec = affinity.New(ExecutorName, affinity.WithLogger(r.logger))
	return r
}

// Executor returns the engine thread.
func (r *Runtime) Executor() *affinity.Executor {
	return r.exec
}

// ensureEngine initializes the engine at most once. A failed init is
// remembered and returned to every later caller.
func (r *Runtime) ensureEngine() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutdown {
		return errors.New(errors.ErrCodeClosed, "runtime is shut down")
	}
	if r.keepAlive != nil {
		return nil
	}
	if r.initErr != nil {
		return r.initErr
	}

	s, err := affinity.Call(r.exec, func() (*Session, error) {
		return newKeepAliveSession(r.engine, r.useGraphics, r.logger)
	})
	if err != nil {
		r.initErr = closedOr(err)
		return r.initErr
	}
	r.keepAlive = s
	return nil
}

// Version initializes the engine if needed and returns its version string.
func (r *Runtime) Version() (string, error) {
	if err := r.ensureEngine(); err != nil {
		return "", err
	}
	v, err := affinity.Call(r.exec, func() (string, error) {
		return r.engine.Version(), nil
	})
	return v, closedOr(err)
}

// NewConverter initializes the engine if needed and returns a converter
// bound to the engine thread.
func (r *Runtime) NewConverter(opts ...Option) (*Converter, error) {
	if err := r.ensureEngine(); err != nil {
		return nil, err
	}

	c := newConverter(r, opts...)
	err := r.exec.Invoke(func() error {
		c.session = newSession(r.engine, c.settings, c.events, c.logger)
		return nil
	})
	if err != nil {
		return nil, closedOr(err)
	}
	for _, o := range c.initial {
		c.Subscribe(o)
	}
	c.initial = nil
	return c, nil
}

// Shutdown deinitializes the engine, if it was initialized, and stops the
// engine thread. It runs once; later calls return the first result. The
// engine cannot be used by this process afterwards.
func (r *Runtime) Shutdown() error {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.shutdown = true
		keepAlive := r.keepAlive
		r.keepAlive = nil
		r.mu.Unlock()

		if keepAlive != nil {
			r.shutdownErr = r.exec.Invoke(keepAlive.close)
		}
		if err := r.exec.Close(); err != nil && r.shutdownErr == nil {
			r.shutdownErr = err
		}
		r.logger.Debug("runtime shut down")
	})
	return r.shutdownErr
}

// closedOr maps a closed executor to ErrCodeClosed.
func closedOr(err error) error {
	if isExecutorClosed(err) {
		return errors.Wrap(errors.ErrCodeClosed, err, "runtime is shut down")
	}
	return err
}

func isExecutorClosed(err error) bool {
	return stderrors.Is(err, affinity.ErrClosed)
}
