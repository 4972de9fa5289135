// Package build orchestrates the per-manifest walk: fingerprinting,
// cache decisions, isolated step execution and build reporting.
package build

import (
	"fmt"
	"strings"
)

// Cause classifies why a step execution failed.
type Cause int

const (
	// CauseExit means the instruction exited with a non-zero status.
	CauseExit Cause = iota
	// CauseTimeout means the per-step timeout elapsed and the
	// instruction was cancelled.
	CauseTimeout
	// CauseInternal means the runner infrastructure itself failed
	// before an exit status was available.
	CauseInternal
)

// String returns the cause label.
func (c Cause) String() string {
	switch c {
	case CauseExit:
		return "exit"
	case CauseTimeout:
		return "timeout"
	case CauseInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// ExecutionError is the hard failure of one step. It aborts the build:
// no later step is attempted and no snapshot is committed for this
// step. Captured output is carried for diagnostics.
type ExecutionError struct {
	Ordinal     int
	Instruction string
	ExitCode    int
	Stdout      string
	Stderr      string
	Cause       Cause
	Underlying  error
}

// Error returns the formatted error message.
func (e *ExecutionError) Error() string {
	switch e.Cause {
	case CauseTimeout:
		return fmt.Sprintf("step %d timed out: %s", e.Ordinal, e.Instruction)
	case CauseInternal:
		return fmt.Sprintf("step %d could not be executed: %s", e.Ordinal, e.Instruction)
	default:
		return fmt.Sprintf("step %d exited with status %d: %s", e.Ordinal, e.ExitCode, e.Instruction)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *ExecutionError) Unwrap() error {
	return e.Underlying
}

// Timeout reports whether the failure was a per-step timeout.
func (e *ExecutionError) Timeout() bool {
	return e.Cause == CauseTimeout
}

// Format returns a fully formatted error with captured diagnostics.
func (e *ExecutionError) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s", e.Error())
	if out := strings.TrimSpace(e.Stdout); out != "" {
		fmt.Fprintf(&b, "\n  Stdout: %s", out)
	}
	if errOut := strings.TrimSpace(e.Stderr); errOut != "" {
		fmt.Fprintf(&b, "\n  Stderr: %s", errOut)
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, "\n  Cause: %v", e.Underlying)
	}

	return b.String()
}
