// Package errors provides structured error types for wkimage.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, HTTP API, and library
//   - Machine-readable error codes for programmatic handling
//   - Typed errors for the three native failure modes (init, setting, conversion)
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - ENGINE_*: Failures reported by the native rendering engine
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "invalid url: %s", in)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // Handle validation error
//	}
//
//	// Typed engine failures carry their own fields
//	var se *errors.SettingError
//	if stderrors.As(err, &se) {
//	    fmt.Println(se.Key, se.Value)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"
	ErrCodeInvalidSettings Code = "INVALID_SETTINGS"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Native engine errors
	ErrCodeEngineInit    Code = "ENGINE_INIT_FAILED"
	ErrCodeEngineSetting Code = "ENGINE_SETTING_REJECTED"
	ErrCodeConversion    Code = "ENGINE_CONVERSION_FAILED"
	ErrCodeLibrary       Code = "ENGINE_LIBRARY_UNAVAILABLE"
	ErrCodeClosed        Code = "ENGINE_CLOSED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coder is implemented by the typed engine errors below.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a typed error with a matching code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// InitError reports that the engine's global init call returned failure.
type InitError struct {
	Version     string // Version string reported by the library
	UseGraphics bool   // Graphics mode that was requested
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return fmt.Sprintf("wkhtmltoimage_init failed (version: %s, useGraphics: %t)", e.Version, e.UseGraphics)
}

// Code returns the error code for this error type.
func (e *InitError) Code() Code {
	return ErrCodeEngineInit
}

// SettingError reports a key/value pair rejected by the native setter.
type SettingError struct {
	Key   string
	Value string
}

// Error implements the error interface.
func (e *SettingError) Error() string {
	return fmt.Sprintf("set global setting %q as %q: operation failed", e.Key, e.Value)
}

// Code returns the error code for this error type.
func (e *SettingError) Code() Code {
	return ErrCodeEngineSetting
}

// ConversionError reports a failed native convert call.
// Messages holds the error callbacks received during the attempt, in order.
type ConversionError struct {
	Messages      []string
	HTTPErrorCode int // 0 when the engine did not report an HTTP failure
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	msg := "conversion failed"
	if e.HTTPErrorCode != 0 {
		msg = fmt.Sprintf("%s (http status %d)", msg, e.HTTPErrorCode)
	}
	if len(e.Messages) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(e.Messages, "\n")
}

// Code returns the error code for this error type.
func (e *ConversionError) Code() Code {
	return ErrCodeConversion
}
