//go:build !(darwin || freebsd || linux)

package native

import (
	"fmt"
	"runtime"
)

// Library is unavailable on this platform.
type Library struct{ Engine }

// Open always fails on platforms without dlopen support.
func Open(path string) (*Library, error) {
	return nil, fmt.Errorf("open %s: dynamic loading is not supported on %s", path, runtime.GOOS)
}

// Path returns an empty string.
func (l *Library) Path() string { return "" }

// Close does nothing.
func (l *Library) Close() error { return nil }
