package native

import (
	"errors"
	"os"
	"runtime"
)

// LibraryEnv names the environment variable that overrides the library path.
const LibraryEnv = "WKHTMLTOX_LIBRARY"

// ErrLibraryNotLoaded is returned when the shared library is not (or no
// longer) loaded.
var ErrLibraryNotLoaded = errors.New("wkhtmltox library not loaded")

// SettingsHandle is an opaque reference to a native global-settings object.
type SettingsHandle uintptr

// ConverterHandle is an opaque reference to a native converter object.
type ConverterHandle uintptr

// Callback shapes mirror the native callback typedefs.
type (
	StringCallback func(msg string)
	VoidCallback   func()
	IntCallback    func(value int)
	BoolCallback   func(value bool)
)

// Engine is the wkhtmltoimage C API.
//
// Status-returning functions report success as true. Callback setters take
// nil to unregister the slot. Output returns a view of the engine-owned
// buffer that is only valid until the converter is destroyed.
type Engine interface {
	Version() string
	Init(useGraphics bool) bool
	Deinit() error

	CreateGlobalSettings() SettingsHandle
	SetGlobalSetting(settings SettingsHandle, key, value string) bool
	CreateConverter(settings SettingsHandle) ConverterHandle
	DestroyConverter(conv ConverterHandle)

	SetErrorCallback(conv ConverterHandle, cb StringCallback)
	SetWarningCallback(conv ConverterHandle, cb StringCallback)
	SetPhaseChangedCallback(conv ConverterHandle, cb VoidCallback)
	SetProgressChangedCallback(conv ConverterHandle, cb IntCallback)
	SetFinishedCallback(conv ConverterHandle, cb BoolCallback)

	Convert(conv ConverterHandle) bool
	Output(conv ConverterHandle) []byte

	CurrentPhase(conv ConverterHandle) int
	PhaseCount(conv ConverterHandle) int
	PhaseDescription(conv ConverterHandle, phase int) string
	ProgressString(conv ConverterHandle) string
	HTTPErrorCode(conv ConverterHandle) int
}

// DefaultLibraryName returns the platform's file name for the library.
func DefaultLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libwkhtmltox.dylib"
	case "windows":
		return "wkhtmltox.dll"
	default:
		return "libwkhtmltox.so"
	}
}

// LibraryPath returns the path from LibraryEnv, or DefaultLibraryName.
func LibraryPath() string {
	if p := os.Getenv(LibraryEnv); p != "" {
		return p
	}
	return DefaultLibraryName()
}
