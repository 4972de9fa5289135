package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
	"github.com/felixgeelhaar/stratum/internal/ports"
)

// Executor runs one step against a base snapshot inside an isolated
// work directory and produces the resulting snapshot. It never retries:
// a non-zero exit status is a hard failure that yields no snapshot.
type Executor struct {
	runner   ports.CommandRunner
	workRoot string
	timeout  time.Duration
}

// NewExecutor creates an Executor that materializes work trees under
// workRoot and runs instructions through runner.
func NewExecutor(runner ports.CommandRunner, workRoot string) *Executor {
	return &Executor{
		runner:   runner,
		workRoot: workRoot,
	}
}

// WithTimeout returns an Executor that cancels each step after d.
// Zero means no per-step timeout.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	return &Executor{
		runner:   e.runner,
		workRoot: e.workRoot,
		timeout:  d,
	}
}

// Execute runs step against base (zero for the very first step, meaning
// an empty filesystem) under env, and returns the resulting snapshot.
// ENV and WORKDIR steps run no command but still yield a snapshot so
// every ordinal has a cacheable state.
func (e *Executor) Execute(ctx context.Context, step manifest.Step, base snapshot.Snapshot, env Environment) (snapshot.Snapshot, error) {
	work, err := os.MkdirTemp(e.workRoot, "layer-")
	if err != nil {
		return snapshot.Snapshot{}, e.internalError(step, err)
	}

	if !base.IsZero() {
		if err := snapshot.CopyTree(base.Root, work); err != nil {
			_ = os.RemoveAll(work)
			return snapshot.Snapshot{}, e.internalError(step, err)
		}
	}

	// The declared workdir must resolve inside the work tree; a path
	// traversing above it would hand the instruction a cwd outside the
	// snapshot and poison the cache with an incomplete tree.
	rel := strings.TrimPrefix(env.Workdir(), "/")
	if rel != "" && !filepath.IsLocal(rel) {
		_ = os.RemoveAll(work)
		return snapshot.Snapshot{}, &ExecutionError{
			Ordinal:     step.Ordinal(),
			Instruction: step.Text(),
			Cause:       CauseInternal,
			Underlying:  fmt.Errorf("working directory %q escapes the build root", env.Workdir()),
		}
	}

	cwd := filepath.Join(work, rel)
	if err := os.MkdirAll(cwd, 0o755); err != nil {
		_ = os.RemoveAll(work)
		return snapshot.Snapshot{}, e.internalError(step, err)
	}

	if step.Kind() == manifest.KindRun {
		if err := e.run(ctx, step, cwd, env); err != nil {
			_ = os.RemoveAll(work)
			return snapshot.Snapshot{}, err
		}
	}

	digest, size, err := snapshot.DigestTree(work)
	if err != nil {
		_ = os.RemoveAll(work)
		return snapshot.Snapshot{}, e.internalError(step, err)
	}

	return snapshot.New(work, digest, size), nil
}

// run executes a RUN step's shell script in the work tree.
func (e *Executor) run(ctx context.Context, step manifest.Step, cwd string, env Environment) error {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := e.runner.Run(runCtx, ports.Invocation{
		Script: step.Args()[0],
		Dir:    cwd,
		Env:    env.Vars(),
	})

	if timedOut(runCtx, err) {
		return &ExecutionError{
			Ordinal:     step.Ordinal(),
			Instruction: step.Text(),
			ExitCode:    result.ExitCode,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
			Cause:       CauseTimeout,
			Underlying:  runCtx.Err(),
		}
	}

	if err != nil {
		return &ExecutionError{
			Ordinal:     step.Ordinal(),
			Instruction: step.Text(),
			Cause:       CauseInternal,
			Underlying:  err,
		}
	}

	if !result.Success() {
		return &ExecutionError{
			Ordinal:     step.Ordinal(),
			Instruction: step.Text(),
			ExitCode:    result.ExitCode,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
			Cause:       CauseExit,
		}
	}

	return nil
}

// internalError wraps an infrastructure failure that prevented the
// step from running at all.
func (e *Executor) internalError(step manifest.Step, err error) *ExecutionError {
	return &ExecutionError{
		Ordinal:     step.Ordinal(),
		Instruction: step.Text(),
		Cause:       CauseInternal,
		Underlying:  fmt.Errorf("materialize work tree: %w", err),
	}
}

// timedOut reports whether the step was cut short by its deadline.
func timedOut(ctx context.Context, runErr error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return errors.Is(runErr, context.DeadlineExceeded)
}
