package errors

import (
	"strings"
	"unicode"
)

// maxInputLength bounds input URLs and paths accepted from users.
const maxInputLength = 2048

// ValidateInput validates an input URL or file path before it is handed to
// the engine as the "in" setting.
//
// The validation rules are intentionally conservative:
//   - No empty inputs
//   - No control characters or null bytes
//   - Maximum length of 2048 characters
//
// Whether the input exists or is reachable is left to the engine.
func ValidateInput(in string) error {
	if in == "" {
		return New(ErrCodeInvalidInput, "input cannot be empty")
	}
	if len(in) > maxInputLength {
		return New(ErrCodeInvalidInput, "input too long (max %d characters)", maxInputLength)
	}
	for _, r := range in {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "input contains invalid control characters")
		}
	}
	return nil
}

// ValidateOutputPath validates a path the engine will write its output to.
// An empty path is valid and means "return the bytes in memory".
func ValidateOutputPath(path string) error {
	if path == "" {
		return nil
	}
	if len(path) > maxInputLength {
		return New(ErrCodeInvalidPath, "output path too long (max %d characters)", maxInputLength)
	}
	if strings.ContainsRune(path, 0) {
		return New(ErrCodeInvalidPath, "output path contains null bytes")
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return New(ErrCodeInvalidPath, "output path must name a file, got directory %q", path)
	}
	return nil
}
