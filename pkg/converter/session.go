package converter

import (
	"bytes"
	stderrors "errors"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/native"
	"github.com/matzehuels/wkimage/pkg/settings"
)

// State is the lifecycle state of a session's current conversion attempt.
type State int

const (
	StateIdle State = iota
	StateSettingsBuilt
	StateConverterCreated
	StateCallbacksRegistered
	StateConverting
	StateSucceeded
	StateFailed
	StateDestroyed
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateSettingsBuilt:       "settings_built",
	StateConverterCreated:    "converter_created",
	StateCallbacksRegistered: "callbacks_registered",
	StateConverting:          "converting",
	StateSucceeded:           "succeeded",
	StateFailed:              "failed",
	StateDestroyed:           "destroyed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Session drives the native convert protocol. It is not safe for concurrent
// use: every method must run on the engine thread.
type Session struct {
	engine   native.Engine
	settings *settings.Image
	events   *dispatcher
	logger   *log.Logger

	// ownsEngine marks the process keep-alive session, which brackets the
	// engine's global init/deinit.
	ownsEngine bool
	closed     bool

	state   State
	onState func(State)
	errs    []string
	phase   int
}

func newSession(engine native.Engine, img *settings.Image, events *dispatcher, logger *log.Logger) *Session {
	return &Session{
		engine:   engine,
		settings: img,
		events:   events,
		logger:   logger,
	}
}

// newKeepAliveSession initializes the engine. It is the only place the
// engine's global init is called.
func newKeepAliveSession(engine native.Engine, useGraphics bool, logger *log.Logger) (*Session, error) {
	version := engine.Version()
	if !engine.Init(useGraphics) {
		return nil, &errors.InitError{Version: version, UseGraphics: useGraphics}
	}
	logger.Debug("initialized engine", "version", version, "useGraphics", useGraphics)

	img := settings.Default()
	img.UseGraphics = useGraphics
	s := newSession(engine, img, newDispatcher(logger), logger)
	s.ownsEngine = true
	return s, nil
}

// State returns the state of the most recent conversion attempt.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(st State) {
	s.state = st
	s.logger.Debug("session state", "state", st)
	if s.onState != nil {
		s.onState(st)
	}
}

// convert runs one attempt with the session's settings. A non-empty input
// overrides the configured "in" value for this attempt only.
func (s *Session) convert(input string) ([]byte, error) {
	if s.closed {
		return nil, errors.New(errors.ErrCodeClosed, "converter is closed")
	}

	img := s.settings
	if input != "" {
		img = img.Clone()
		img.In = input
	}

	s.setState(StateIdle)
	globals, err := s.buildSettings(img)
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}
	s.setState(StateSettingsBuilt)

	conv := s.engine.CreateConverter(globals)
	if conv == 0 {
		s.setState(StateFailed)
		return nil, errors.New(errors.ErrCodeLibrary, "wkhtmltoimage_create_converter returned no converter")
	}
	s.setState(StateConverterCreated)
	defer s.destroy(conv)

	s.errs = nil
	s.phase = 0
	s.registerCallbacks(conv)
	s.setState(StateCallbacksRegistered)

	s.events.begin(s.engine.PhaseCount(conv))
	s.setState(StateConverting)

	if !s.engine.Convert(conv) {
		s.setState(StateFailed)
		return nil, &errors.ConversionError{
			Messages:      append([]string(nil), s.errs...),
			HTTPErrorCode: s.engine.HTTPErrorCode(conv),
		}
	}
	s.setState(StateSucceeded)

	if img.Out != "" {
		return nil, nil
	}
	return bytes.Clone(s.engine.Output(conv)), nil
}

// buildSettings creates a global-settings object and applies every
// flattened setting. The first rejected key aborts the attempt.
func (s *Session) buildSettings(img *settings.Image) (native.SettingsHandle, error) {
	globals := s.engine.CreateGlobalSettings()
	for _, kv := range settings.Flatten("", img) {
		if !s.engine.SetGlobalSetting(globals, kv.Key, kv.Value) {
			return 0, &errors.SettingError{Key: kv.Key, Value: kv.Value}
		}
	}
	return globals, nil
}

func (s *Session) registerCallbacks(conv native.ConverterHandle) {
	s.engine.SetErrorCallback(conv, func(msg string) {
		s.errs = append(s.errs, msg)
		s.events.reportError(msg)
	})
	s.engine.SetWarningCallback(conv, func(msg string) {
		s.events.reportWarning(msg)
	})
	s.engine.SetPhaseChangedCallback(conv, func() {
		desc := s.engine.PhaseDescription(conv, s.phase)
		s.phase++
		s.events.phaseChanged(s.phase, desc)
	})
	s.engine.SetProgressChangedCallback(conv, func(progress int) {
		s.events.progressChanged(progress, s.engine.ProgressString(conv))
	})
	s.engine.SetFinishedCallback(conv, func(success bool) {
		s.events.finished(success)
	})
}

// destroy unregisters every callback and only then releases the converter.
func (s *Session) destroy(conv native.ConverterHandle) {
	s.engine.SetErrorCallback(conv, nil)
	s.engine.SetWarningCallback(conv, nil)
	s.engine.SetPhaseChangedCallback(conv, nil)
	s.engine.SetProgressChangedCallback(conv, nil)
	s.engine.SetFinishedCallback(conv, nil)
	s.engine.DestroyConverter(conv)
	s.setState(StateDestroyed)
}

// close releases the session. The keep-alive session also deinitializes the
// engine; a library that is already gone is ignored.
func (s *Session) close() error {
	if s.closed {
		s.logger.Warn("session closed more than once")
		return nil
	}
	s.closed = true
	s.events.clear()

	if !s.ownsEngine {
		return nil
	}
	if err := s.engine.Deinit(); err != nil {
		if stderrors.Is(err, native.ErrLibraryNotLoaded) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "deinitialize engine")
	}
	s.logger.Debug("deinitialized engine")
	return nil
}
