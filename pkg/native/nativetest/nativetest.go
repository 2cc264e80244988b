// Package nativetest provides an in-memory native.Engine for tests.
//
// The fake records every call in order, fires the converter callbacks
// synchronously from Convert, and produces real PNG, JPEG or BMP bytes sized
// after the screenWidth/screenHeight settings.
package nativetest

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/bmp"

	"github.com/matzehuels/wkimage/pkg/native"
)

// DefaultPhases are reported when Engine.Phases is empty.
var DefaultPhases = []string{"Loading page", "Rendering page", "Saving image"}

// Engine is a scriptable test double for native.Engine. Configure the
// exported fields before handing it to a converter; they are read under the
// engine's lock.
type Engine struct {
	// VersionString is returned by Version.
	VersionString string
	// FailInit makes Init report failure.
	FailInit bool
	// Unloaded makes Deinit report native.ErrLibraryNotLoaded.
	Unloaded bool
	// RejectKey makes SetGlobalSetting fail for that key. Keys missing from
	// ImageKeys always fail.
	RejectKey string
	// FailConvert makes Convert report failure after firing callbacks.
	FailConvert bool
	// Errors and Warnings are emitted through the callbacks during Convert.
	Errors   []string
	Warnings []string
	// Phases overrides DefaultPhases.
	Phases []string
	// Progress lists the values fed to the progress-changed callback.
	Progress []int
	// HTTPCode is returned by HTTPErrorCode.
	HTTPCode int
	// OnCall, when set, runs at the start of every method with its C name.
	OnCall func(name string)

	mu         sync.Mutex
	calls      []string
	inits      int
	deinits    int
	next       uintptr
	settings   map[native.SettingsHandle]map[string]string
	converters map[native.ConverterHandle]*converter
	inputs     []string
}

type converter struct {
	settings  map[string]string
	output    []byte
	phase     int
	onError   native.StringCallback
	onWarning native.StringCallback
	onPhase   native.VoidCallback
	onProg    native.IntCallback
	onDone    native.BoolCallback
}

// New returns an Engine with a fixed version string.
func New() *Engine {
	return &Engine{VersionString: "0.12.6-test"}
}

func (e *Engine) record(name string) {
	if e.OnCall != nil {
		e.OnCall(name)
	}
	e.calls = append(e.calls, name)
}

func (e *Engine) lazyInit() {
	if e.settings == nil {
		e.settings = map[native.SettingsHandle]map[string]string{}
		e.converters = map[native.ConverterHandle]*converter{}
	}
}

// Calls returns the recorded call sequence.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// CallCount reports how often the named call was recorded.
func (e *Engine) CallCount(name string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// Inits reports how many times Init was called.
func (e *Engine) Inits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inits
}

// Deinits reports how many times Deinit was called.
func (e *Engine) Deinits() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deinits
}

// Live reports the number of converters not yet destroyed.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.converters)
}

// Inputs returns what each Convert call rendered: the contents of the file
// named by "in" when it exists, otherwise the raw "in" value.
func (e *Engine) Inputs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.inputs...)
}

// Version implements native.Engine.
func (e *Engine) Version() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("version")
	return e.VersionString
}

// Init implements native.Engine.
func (e *Engine) Init(useGraphics bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("init")
	e.inits++
	return !e.FailInit
}

// Deinit implements native.Engine.
func (e *Engine) Deinit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("deinit")
	if e.Unloaded {
		return native.ErrLibraryNotLoaded
	}
	e.deinits++
	return nil
}

// CreateGlobalSettings implements native.Engine.
func (e *Engine) CreateGlobalSettings() native.SettingsHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	e.record("create_global_settings")
	e.next++
	h := native.SettingsHandle(e.next)
	e.settings[h] = map[string]string{}
	return h
}

// SetGlobalSetting implements native.Engine.
func (e *Engine) SetGlobalSetting(settings native.SettingsHandle, key, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	e.record("set_global_setting")
	m, ok := e.settings[settings]
	if !ok || key == e.RejectKey || !ImageKeys[key] {
		return false
	}
	m[key] = value
	return true
}

// Settings returns the values applied to the most recently created settings
// object.
func (e *Engine) Settings() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := map[string]string{}
	if m, ok := e.settings[e.latestSettings()]; ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func (e *Engine) latestSettings() native.SettingsHandle {
	var latest native.SettingsHandle
	for h := range e.settings {
		if h > latest {
			latest = h
		}
	}
	return latest
}

// CreateConverter implements native.Engine.
func (e *Engine) CreateConverter(settings native.SettingsHandle) native.ConverterHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	e.record("create_converter")
	m, ok := e.settings[settings]
	if !ok {
		return 0
	}
	e.next++
	h := native.ConverterHandle(e.next)
	e.converters[h] = &converter{settings: m}
	return h
}

// DestroyConverter implements native.Engine.
func (e *Engine) DestroyConverter(conv native.ConverterHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	e.record("destroy_converter")
	delete(e.converters, conv)
}

func (e *Engine) setCallback(name string, conv native.ConverterHandle, isNil bool, set func(*converter)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	if isNil {
		name += "(nil)"
	}
	e.record(name)
	if c, ok := e.converters[conv]; ok {
		set(c)
	}
}

// SetErrorCallback implements native.Engine.
func (e *Engine) SetErrorCallback(conv native.ConverterHandle, cb native.StringCallback) {
	e.setCallback("set_error_callback", conv, cb == nil, func(c *converter) { c.onError = cb })
}

// SetWarningCallback implements native.Engine.
func (e *Engine) SetWarningCallback(conv native.ConverterHandle, cb native.StringCallback) {
	e.setCallback("set_warning_callback", conv, cb == nil, func(c *converter) { c.onWarning = cb })
}

// SetPhaseChangedCallback implements native.Engine.
func (e *Engine) SetPhaseChangedCallback(conv native.ConverterHandle, cb native.VoidCallback) {
	e.setCallback("set_phase_changed_callback", conv, cb == nil, func(c *converter) { c.onPhase = cb })
}

// SetProgressChangedCallback implements native.Engine.
func (e *Engine) SetProgressChangedCallback(conv native.ConverterHandle, cb native.IntCallback) {
	e.setCallback("set_progress_changed_callback", conv, cb == nil, func(c *converter) { c.onProg = cb })
}

// SetFinishedCallback implements native.Engine.
func (e *Engine) SetFinishedCallback(conv native.ConverterHandle, cb native.BoolCallback) {
	e.setCallback("set_finished_callback", conv, cb == nil, func(c *converter) { c.onDone = cb })
}

// Convert implements native.Engine. Callbacks run without the engine lock
// held so they may call back into the engine.
func (e *Engine) Convert(conv native.ConverterHandle) bool {
	e.mu.Lock()
	e.lazyInit()
	e.record("convert")
	c, ok := e.converters[conv]
	if !ok {
		e.mu.Unlock()
		return false
	}
	phases := e.phases()
	progress := append([]int(nil), e.Progress...)
	errs := append([]string(nil), e.Errors...)
	warns := append([]string(nil), e.Warnings...)
	fail := e.FailConvert
	cb := *c
	e.inputs = append(e.inputs, readInput(c.settings["in"]))
	e.mu.Unlock()

	for i := range phases {
		e.mu.Lock()
		c.phase = i
		e.mu.Unlock()
		if cb.onPhase != nil {
			cb.onPhase()
		}
	}
	for _, p := range progress {
		if cb.onProg != nil {
			cb.onProg(p)
		}
	}
	for _, w := range warns {
		if cb.onWarning != nil {
			cb.onWarning(w)
		}
	}
	for _, m := range errs {
		if cb.onError != nil {
			cb.onError(m)
		}
	}

	success := !fail
	if success {
		out, err := render(c.settings)
		if err != nil {
			if cb.onError != nil {
				cb.onError(err.Error())
			}
			success = false
		} else if path := c.settings["out"]; path != "" {
			if err := os.WriteFile(path, out, 0o644); err != nil {
				if cb.onError != nil {
					cb.onError(err.Error())
				}
				success = false
			}
		} else {
			e.mu.Lock()
			c.output = out
			e.mu.Unlock()
		}
	}
	if cb.onDone != nil {
		cb.onDone(success)
	}
	return success
}

// Output implements native.Engine.
func (e *Engine) Output(conv native.ConverterHandle) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	e.record("get_output")
	if c, ok := e.converters[conv]; ok {
		return c.output
	}
	return nil
}

// CurrentPhase implements native.Engine.
func (e *Engine) CurrentPhase(conv native.ConverterHandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lazyInit()
	e.record("current_phase")
	if c, ok := e.converters[conv]; ok {
		return c.phase
	}
	return 0
}

// PhaseCount implements native.Engine.
func (e *Engine) PhaseCount(conv native.ConverterHandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("phase_count")
	return len(e.phases())
}

// PhaseDescription implements native.Engine.
func (e *Engine) PhaseDescription(conv native.ConverterHandle, phase int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("phase_description")
	phases := e.phases()
	if phase < 0 || phase >= len(phases) {
		return ""
	}
	return phases[phase]
}

// ProgressString implements native.Engine.
func (e *Engine) ProgressString(conv native.ConverterHandle) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("progress_string")
	if len(e.Progress) == 0 {
		return ""
	}
	return strconv.Itoa(e.Progress[len(e.Progress)-1]) + "%"
}

// HTTPErrorCode implements native.Engine.
func (e *Engine) HTTPErrorCode(conv native.ConverterHandle) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("http_error_code")
	return e.HTTPCode
}

func (e *Engine) phases() []string {
	if len(e.Phases) > 0 {
		return e.Phases
	}
	return DefaultPhases
}

func readInput(in string) string {
	if in == "" || in == "-" {
		return in
	}
	if data, err := os.ReadFile(in); err == nil {
		return string(data)
	}
	return in
}

// render encodes a blank image in the configured format.
func render(s map[string]string) ([]byte, error) {
	w := atoiDefault(s["screenWidth"], 1024)
	h := atoiDefault(s["screenHeight"], 0)
	if h == 0 {
		h = w * 3 / 4
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if s["transparent"] != "true" {
		for i := range img.Pix {
			img.Pix[i] = 0xff
		}
	}

	var buf bytes.Buffer
	var err error
	switch strings.ToLower(s["fmt"]) {
	case "", "png":
		err = png.Encode(&buf, img)
	case "jpg":
		q := atoiDefault(s["quality"], 94)
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: q})
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "svg":
		fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="100%%" height="100%%" fill="%s"/></svg>`,
			w, h, svgFill(img.At(0, 0)))
	default:
		err = errors.New("unsupported format " + s["fmt"])
	}
	return buf.Bytes(), err
}

func svgFill(c color.Color) string {
	if _, _, _, a := c.RGBA(); a == 0 {
		return "none"
	}
	return "white"
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

var _ native.Engine = (*Engine)(nil)
