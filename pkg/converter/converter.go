package converter

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/wkimage/pkg/affinity"
	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/settings"
)

// Converter renders with a fixed set of settings. It is safe for concurrent
// use; all conversions run one at a time on the runtime's engine thread.
type Converter struct {
	rt      *Runtime
	exec    *affinity.Executor
	logger  *log.Logger
	events  *dispatcher
	tempDir string

	initial []Observer

	// session is only touched on the engine thread.
	session *Session

	mu       sync.Mutex
	settings *settings.Image // mirrors session.settings
	closed   bool
}

func newConverter(rt *Runtime, opts ...Option) *Converter {
	c := &Converter{
		rt:       rt,
		exec:     rt.exec,
		logger:   rt.logger,
		events:   newDispatcher(rt.logger),
		tempDir:  defaultTempDir(),
		settings: settings.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Settings returns a copy of the settings later conversions will use.
func (c *Converter) Settings() *settings.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Clone()
}

// SetSettings replaces the settings used by later conversions.
func (c *Converter) SetSettings(img *settings.Image) error {
	if img == nil {
		return errors.New(errors.ErrCodeInvalidSettings, "settings cannot be nil")
	}
	img = img.Clone()
	return closedOr(c.exec.Invoke(func() error {
		c.session.settings = img
		c.mu.Lock()
		c.settings = img
		c.mu.Unlock()
		return nil
	}))
}

// Subscribe registers o for events from every later conversion and
// returns a function that removes it.
func (c *Converter) Subscribe(o Observer) (unsubscribe func()) {
	return c.events.subscribe(o)
}

// Convert renders the input configured by the "in" setting. When "out" is
// set the engine writes the file itself and Convert returns nil bytes.
func (c *Converter) Convert() ([]byte, error) {
	return c.run("")
}

// ConvertHTML renders the given markup. The markup is staged in a
// temporary file that replaces "in" for this conversion only.
func (c *Converter) ConvertHTML(html string) ([]byte, error) {
	if html == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "html cannot be empty")
	}

	path := filepath.Join(c.tempDir, "wkimage-"+uuid.NewString()+".html")
	if err := os.WriteFile(path, []byte(html), 0o600); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "stage html input")
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			c.logger.Warn("remove staged input", "path", path, "error", err)
		}
	}()
	return c.run(path)
}

func (c *Converter) run(input string) ([]byte, error) {
	if c.isClosed() {
		return nil, errors.New(errors.ErrCodeClosed, "converter is closed")
	}
	out, err := affinity.Apply(c.exec, c.session.convert, input)
	return out, closedOr(err)
}

func (c *Converter) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases the converter and drops its subscribers. Calling Close
// again logs a warning and does nothing.
func (c *Converter) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("converter closed more than once")
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.exec.Invoke(c.session.close)
	if isExecutorClosed(err) {
		// The runtime already shut down; the session holds no native handles
		// between conversions.
		c.events.clear()
		return nil
	}
	return err
}
