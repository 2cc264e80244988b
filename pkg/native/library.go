//go:build darwin || freebsd || linux

package native

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Library is an Engine backed by a dynamically loaded libwkhtmltox.
type Library struct {
	path string

	mu     sync.Mutex
	handle uintptr
	fn     functions
}

// functions holds the bound wkhtmltoimage_* symbols.
type functions struct {
	version              func() string
	init                 func(useGraphics int32) int32
	deinit               func() int32
	createGlobalSettings func() uintptr
	setGlobalSetting     func(settings uintptr, name, value string) int32
	createConverter      func(settings uintptr) uintptr
	destroyConverter     func(conv uintptr)
	convert              func(conv uintptr) int32
	getOutput            func(conv uintptr, data *uintptr) int
	currentPhase         func(conv uintptr) int32
	phaseCount           func(conv uintptr) int32
	phaseDescription     func(conv uintptr, phase int32) string
	progressString       func(conv uintptr) string
	httpErrorCode        func(conv uintptr) int32

	setErrorCallback           func(conv, cb uintptr)
	setWarningCallback         func(conv, cb uintptr)
	setPhaseChangedCallback    func(conv, cb uintptr)
	setProgressChangedCallback func(conv, cb uintptr)
	setFinishedCallback        func(conv, cb uintptr)
}

// Open loads the library at path and binds every symbol the converter uses.
// A missing library or symbol is reported as an error.
func Open(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	l := &Library{path: path, handle: handle}
	symbols := []struct {
		fptr any
		name string
	}{
		{&l.fn.version, "wkhtmltoimage_version"},
		{&l.fn.init, "wkhtmltoimage_init"},
		{&l.fn.deinit, "wkhtmltoimage_deinit"},
		{&l.fn.createGlobalSettings, "wkhtmltoimage_create_global_settings"},
		{&l.fn.setGlobalSetting, "wkhtmltoimage_set_global_setting"},
		{&l.fn.createConverter, "wkhtmltoimage_create_converter"},
		{&l.fn.destroyConverter, "wkhtmltoimage_destroy_converter"},
		{&l.fn.convert, "wkhtmltoimage_convert"},
		{&l.fn.getOutput, "wkhtmltoimage_get_output"},
		{&l.fn.currentPhase, "wkhtmltoimage_current_phase"},
		{&l.fn.phaseCount, "wkhtmltoimage_phase_count"},
		{&l.fn.phaseDescription, "wkhtmltoimage_phase_description"},
		{&l.fn.progressString, "wkhtmltoimage_progress_string"},
		{&l.fn.httpErrorCode, "wkhtmltoimage_http_error_code"},
		{&l.fn.setErrorCallback, "wkhtmltoimage_set_error_callback"},
		{&l.fn.setWarningCallback, "wkhtmltoimage_set_warning_callback"},
		{&l.fn.setPhaseChangedCallback, "wkhtmltoimage_set_phase_changed_callback"},
		{&l.fn.setProgressChangedCallback, "wkhtmltoimage_set_progress_changed_callback"},
		{&l.fn.setFinishedCallback, "wkhtmltoimage_set_finished_callback"},
	}
	for _, s := range symbols {
		sym, err := purego.Dlsym(handle, s.name)
		if err != nil {
			_ = purego.Dlclose(handle)
			return nil, fmt.Errorf("%s: missing symbol %s: %w", path, s.name, err)
		}
		purego.RegisterFunc(s.fptr, sym)
	}
	return l, nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Close unloads the library. Later calls to Deinit report ErrLibraryNotLoaded.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return nil
	}
	err := purego.Dlclose(l.handle)
	l.handle = 0
	l.fn = functions{}
	return err
}

func (l *Library) loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != 0
}

// Version implements Engine.
func (l *Library) Version() string {
	if !l.loaded() {
		return ""
	}
	return l.fn.version()
}

// Init implements Engine. It reports false when the library is not loaded.
func (l *Library) Init(useGraphics bool) bool {
	if !l.loaded() {
		return false
	}
	var flag int32
	if useGraphics {
		flag = 1
	}
	return l.fn.init(flag) != 0
}

// Deinit implements Engine.
func (l *Library) Deinit() error {
	if !l.loaded() {
		return ErrLibraryNotLoaded
	}
	if l.fn.deinit() == 0 {
		return fmt.Errorf("wkhtmltoimage_deinit failed")
	}
	return nil
}

// CreateGlobalSettings implements Engine.
func (l *Library) CreateGlobalSettings() SettingsHandle {
	return SettingsHandle(l.fn.createGlobalSettings())
}

// SetGlobalSetting implements Engine.
func (l *Library) SetGlobalSetting(settings SettingsHandle, key, value string) bool {
	return l.fn.setGlobalSetting(uintptr(settings), key, value) != 0
}

// CreateConverter implements Engine.
func (l *Library) CreateConverter(settings SettingsHandle) ConverterHandle {
	return ConverterHandle(l.fn.createConverter(uintptr(settings)))
}

// DestroyConverter implements Engine. Any callbacks still registered for
// conv are dropped from the registry.
func (l *Library) DestroyConverter(conv ConverterHandle) {
	l.fn.destroyConverter(uintptr(conv))
	forget(uintptr(conv))
}

// Convert implements Engine.
func (l *Library) Convert(conv ConverterHandle) bool {
	return l.fn.convert(uintptr(conv)) != 0
}

// Output implements Engine. The returned slice aliases engine memory.
func (l *Library) Output(conv ConverterHandle) []byte {
	var data uintptr
	n := l.fn.getOutput(uintptr(conv), &data)
	if n <= 0 || data == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(data)), n)
}

// CurrentPhase implements Engine.
func (l *Library) CurrentPhase(conv ConverterHandle) int {
	return int(l.fn.currentPhase(uintptr(conv)))
}

// PhaseCount implements Engine.
func (l *Library) PhaseCount(conv ConverterHandle) int {
	return int(l.fn.phaseCount(uintptr(conv)))
}

// PhaseDescription implements Engine.
func (l *Library) PhaseDescription(conv ConverterHandle, phase int) string {
	return l.fn.phaseDescription(uintptr(conv), int32(phase))
}

// ProgressString implements Engine.
func (l *Library) ProgressString(conv ConverterHandle) string {
	return l.fn.progressString(uintptr(conv))
}

// HTTPErrorCode implements Engine.
func (l *Library) HTTPErrorCode(conv ConverterHandle) int {
	return int(l.fn.httpErrorCode(uintptr(conv)))
}

// SetErrorCallback implements Engine.
func (l *Library) SetErrorCallback(conv ConverterHandle, cb StringCallback) {
	ptr := register(uintptr(conv), func(s *slots) { s.err = cb }, cb != nil, func(t *trampolineSet) uintptr { return t.err })
	l.fn.setErrorCallback(uintptr(conv), ptr)
}

// SetWarningCallback implements Engine.
func (l *Library) SetWarningCallback(conv ConverterHandle, cb StringCallback) {
	ptr := register(uintptr(conv), func(s *slots) { s.warn = cb }, cb != nil, func(t *trampolineSet) uintptr { return t.warn })
	l.fn.setWarningCallback(uintptr(conv), ptr)
}

// SetPhaseChangedCallback implements Engine.
func (l *Library) SetPhaseChangedCallback(conv ConverterHandle, cb VoidCallback) {
	ptr := register(uintptr(conv), func(s *slots) { s.phase = cb }, cb != nil, func(t *trampolineSet) uintptr { return t.phase })
	l.fn.setPhaseChangedCallback(uintptr(conv), ptr)
}

// SetProgressChangedCallback implements Engine.
func (l *Library) SetProgressChangedCallback(conv ConverterHandle, cb IntCallback) {
	ptr := register(uintptr(conv), func(s *slots) { s.progress = cb }, cb != nil, func(t *trampolineSet) uintptr { return t.progress })
	l.fn.setProgressChangedCallback(uintptr(conv), ptr)
}

// SetFinishedCallback implements Engine.
func (l *Library) SetFinishedCallback(conv ConverterHandle, cb BoolCallback) {
	ptr := register(uintptr(conv), func(s *slots) { s.finished = cb }, cb != nil, func(t *trampolineSet) uintptr { return t.finished })
	l.fn.setFinishedCallback(uintptr(conv), ptr)
}

var _ Engine = (*Library)(nil)
