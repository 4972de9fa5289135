// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
)

// Invocation describes a single shell instruction to execute.
// The script is run through the system shell; Dir and Env fully
// describe the execution context (no inherited host environment).
type Invocation struct {
	Script string
	Dir    string
	Env    []string // complete environment, KEY=VALUE pairs
}

// CommandResult represents the result of executing a shell instruction.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the instruction exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// CommandRunner executes shell instructions.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) (CommandResult, error)
}
