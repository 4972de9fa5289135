package manifest

import (
	"fmt"
	"strings"
)

// Error codes for manifest parsing.
const (
	ErrCodeManifestParse      = "MANIFEST_PARSE"
	ErrCodeUnknownInstruction = "UNKNOWN_INSTRUCTION"
	ErrCodeMissingBaseImage   = "MISSING_BASE_IMAGE"
	ErrCodeDuplicateBaseImage = "DUPLICATE_BASE_IMAGE"
)

// ParseError represents a manifest parse failure. Parsing is all or
// nothing: a ParseError means no step of the manifest was executed.
type ParseError struct {
	Code    string // Error code for categorization
	Message string // User-friendly error message
	Line    int    // 1-based line number in the manifest source
	Text    string // Offending line text, if any
}

// Error returns the formatted error message.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("manifest line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("manifest: %s", e.Message)
}

// Is supports errors.Is() for comparing error codes.
func (e *ParseError) Is(target error) bool {
	if t, ok := target.(*ParseError); ok {
		return e.Code == t.Code
	}
	return false
}

// Format returns a fully formatted error with all details.
func (e *ParseError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Line > 0 {
		fmt.Fprintf(&b, "\n  Line: %d", e.Line)
	}
	if e.Text != "" {
		fmt.Fprintf(&b, "\n  Instruction: %s", e.Text)
	}

	return b.String()
}

// newParseError creates a ParseError for a specific line.
func newParseError(code string, line int, text, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Text:    text,
	}
}
