package converter

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wkimage/pkg/settings"
)

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger sets the runtime logger. Converters inherit it.
func WithLogger(l *log.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithUseGraphics sets the flag passed to the engine's global init.
func WithUseGraphics(useGraphics bool) RuntimeOption {
	return func(r *Runtime) {
		r.useGraphics = useGraphics
	}
}

// Option configures a Converter.
type Option func(*Converter)

// WithSettings sets the converter's settings. The value is copied.
func WithSettings(img *settings.Image) Option {
	return func(c *Converter) {
		if img != nil {
			c.settings = img.Clone()
		}
	}
}

// WithObserver subscribes o before the converter is returned.
func WithObserver(o Observer) Option {
	return func(c *Converter) {
		if o != nil {
			c.initial = append(c.initial, o)
		}
	}
}

// WithTempDir sets where ConvertHTML stages markup. It defaults to
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Converter) {
		c.tempDir = dir
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func defaultTempDir() string {
	return os.TempDir()
}
