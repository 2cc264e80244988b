//go:build darwin || freebsd || linux

package native

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// purego callbacks are never freed, so one trampoline per slot is created
// for the whole process and dispatches by converter pointer.
type trampolineSet struct {
	err, warn, phase, progress, finished uintptr
}

// slots holds the Go callbacks registered for one converter.
type slots struct {
	err      StringCallback
	warn     StringCallback
	phase    VoidCallback
	progress IntCallback
	finished BoolCallback
}

func (s *slots) empty() bool {
	return s.err == nil && s.warn == nil && s.phase == nil && s.progress == nil && s.finished == nil
}

var (
	trampolinesOnce sync.Once
	trampolines     trampolineSet

	registryMu sync.Mutex
	registry   = map[uintptr]*slots{}
)

func loadTrampolines() *trampolineSet {
	trampolinesOnce.Do(func() {
		trampolines = trampolineSet{
			err:      purego.NewCallback(onError),
			warn:     purego.NewCallback(onWarning),
			phase:    purego.NewCallback(onPhaseChanged),
			progress: purego.NewCallback(onProgressChanged),
			finished: purego.NewCallback(onFinished),
		}
	})
	return &trampolines
}

// register updates one slot for conv and returns the C function pointer to
// hand to the native setter: the trampoline when set, 0 (NULL) when cleared.
func register(conv uintptr, update func(*slots), set bool, pick func(*trampolineSet) uintptr) uintptr {
	registryMu.Lock()
	s, ok := registry[conv]
	if !ok {
		s = &slots{}
		registry[conv] = s
	}
	update(s)
	if s.empty() {
		delete(registry, conv)
	}
	registryMu.Unlock()

	if !set {
		return 0
	}
	return pick(loadTrampolines())
}

func forget(conv uintptr) {
	registryMu.Lock()
	delete(registry, conv)
	registryMu.Unlock()
}

func lookup(conv uintptr) slots {
	registryMu.Lock()
	defer registryMu.Unlock()
	if s, ok := registry[conv]; ok {
		return *s
	}
	return slots{}
}

func onError(conv, str uintptr) {
	if cb := lookup(conv).err; cb != nil {
		cb(goString(str))
	}
}

func onWarning(conv, str uintptr) {
	if cb := lookup(conv).warn; cb != nil {
		cb(goString(str))
	}
}

func onPhaseChanged(conv uintptr) {
	if cb := lookup(conv).phase; cb != nil {
		cb()
	}
}

func onProgressChanged(conv uintptr, value int32) {
	if cb := lookup(conv).progress; cb != nil {
		cb(int(value))
	}
}

func onFinished(conv uintptr, value int32) {
	if cb := lookup(conv).finished; cb != nil {
		cb(value != 0)
	}
}

// goString copies a NUL-terminated C string.
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	ptr := unsafe.Pointer(p)
	n := 0
	for *(*byte)(unsafe.Add(ptr, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(ptr), n))
}
