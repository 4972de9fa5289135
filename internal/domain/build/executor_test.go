package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
	"github.com/felixgeelhaar/stratum/internal/ports"
)

func runStep(ordinal int, script string) manifest.Step {
	return manifest.NewStep(ordinal, manifest.KindRun, "RUN "+script, []string{script})
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	t.Run("first step starts from an empty tree", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		executor := NewExecutor(runner, t.TempDir())

		snap, err := executor.Execute(context.Background(), runStep(1, "install A"), snapshot.Snapshot{}, NewEnvironment())
		require.NoError(t, err)
		assert.False(t, snap.IsZero())
		assert.NotEmpty(t, snap.Digest)

		entries, err := os.ReadDir(snap.Root)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "only the step's own mutation")
	})

	t.Run("base snapshot is cloned, not mutated", func(t *testing.T) {
		t.Parallel()

		baseRoot := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(baseRoot, "base.txt"), []byte("base"), 0o644))
		digest, size, err := snapshot.DigestTree(baseRoot)
		require.NoError(t, err)
		base := snapshot.New(baseRoot, digest, size)

		runner := newFakeRunner()
		executor := NewExecutor(runner, t.TempDir())

		snap, err := executor.Execute(context.Background(), runStep(2, "install B"), base, NewEnvironment())
		require.NoError(t, err)

		// The new tree has the base content plus the step's mutation.
		_, err = os.Stat(filepath.Join(snap.Root, "base.txt"))
		assert.NoError(t, err)

		// The base tree itself is untouched.
		baseDigest, _, err := snapshot.DigestTree(baseRoot)
		require.NoError(t, err)
		assert.Equal(t, digest, baseDigest)
	})

	t.Run("non-zero exit is a hard failure with no snapshot", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		runner.handler = func(_ context.Context, _ ports.Invocation) (ports.CommandResult, error) {
			return ports.CommandResult{ExitCode: 2, Stdout: "tried", Stderr: "denied"}, nil
		}
		workRoot := t.TempDir()
		executor := NewExecutor(runner, workRoot)

		snap, err := executor.Execute(context.Background(), runStep(1, "install A"), snapshot.Snapshot{}, NewEnvironment())

		require.Error(t, err)
		assert.True(t, snap.IsZero())

		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 1, execErr.Ordinal)
		assert.Equal(t, 2, execErr.ExitCode)
		assert.Equal(t, "tried", execErr.Stdout)
		assert.Equal(t, "denied", execErr.Stderr)
		assert.Equal(t, CauseExit, execErr.Cause)

		// The failed work tree is cleaned up.
		entries, readErr := os.ReadDir(workRoot)
		require.NoError(t, readErr)
		assert.Empty(t, entries)
	})

	t.Run("runner infrastructure failure is an internal cause", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		runner.handler = func(_ context.Context, _ ports.Invocation) (ports.CommandResult, error) {
			return ports.CommandResult{}, errors.New("shell not found")
		}
		executor := NewExecutor(runner, t.TempDir())

		_, err := executor.Execute(context.Background(), runStep(1, "install A"), snapshot.Snapshot{}, NewEnvironment())

		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, CauseInternal, execErr.Cause)
	})

	t.Run("workdir is created inside the tree", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		executor := NewExecutor(runner, t.TempDir())

		env := NewEnvironment().Apply(
			manifest.NewStep(1, manifest.KindWorkdir, "WORKDIR /opt/build", []string{"/opt/build"}))
		step := manifest.NewStep(1, manifest.KindWorkdir, "WORKDIR /opt/build", []string{"/opt/build"})

		snap, err := executor.Execute(context.Background(), step, snapshot.Snapshot{}, env)
		require.NoError(t, err)

		info, err := os.Stat(filepath.Join(snap.Root, "opt", "build"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("workdir traversing above the tree is rejected", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		workRoot := t.TempDir()
		executor := NewExecutor(runner, workRoot)

		env := NewEnvironment().Apply(
			manifest.NewStep(1, manifest.KindWorkdir, "WORKDIR ..", []string{".."}))

		snap, err := executor.Execute(context.Background(), runStep(2, "touch escaped"), snapshot.Snapshot{}, env)

		require.Error(t, err)
		assert.True(t, snap.IsZero())
		assert.Zero(t, runner.callCount(), "the instruction must never run outside the tree")

		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, CauseInternal, execErr.Cause)

		// No mutation leaks into the shared work root.
		entries, readErr := os.ReadDir(workRoot)
		require.NoError(t, readErr)
		assert.Empty(t, entries)
	})

	t.Run("workdir with nested traversal is rejected", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		executor := NewExecutor(runner, t.TempDir())

		env := NewEnvironment().Apply(
			manifest.NewStep(1, manifest.KindWorkdir, "WORKDIR /srv/../../tmp", []string{"/srv/../../tmp"}))

		_, err := executor.Execute(context.Background(), runStep(2, "touch escaped"), snapshot.Snapshot{}, env)
		require.Error(t, err)
		assert.Zero(t, runner.callCount())
	})

	t.Run("env step executes no command", func(t *testing.T) {
		t.Parallel()

		runner := newFakeRunner()
		executor := NewExecutor(runner, t.TempDir())
		step := manifest.NewStep(1, manifest.KindEnv, "ENV CC=gcc", []string{"CC=gcc"})

		snap, err := executor.Execute(context.Background(), step, snapshot.Snapshot{}, NewEnvironment())
		require.NoError(t, err)
		assert.False(t, snap.IsZero())
		assert.Zero(t, runner.callCount())
	})
}

func TestExecutionError_Messages(t *testing.T) {
	t.Parallel()

	exit := &ExecutionError{Ordinal: 3, Instruction: "RUN make", ExitCode: 2, Cause: CauseExit}
	assert.Contains(t, exit.Error(), "step 3")
	assert.Contains(t, exit.Error(), "status 2")
	assert.False(t, exit.Timeout())

	timeout := &ExecutionError{Ordinal: 1, Instruction: "RUN sleep", Cause: CauseTimeout}
	assert.Contains(t, timeout.Error(), "timed out")
	assert.True(t, timeout.Timeout())

	withOutput := &ExecutionError{Ordinal: 2, Instruction: "RUN x", ExitCode: 1, Stderr: "bad flag", Cause: CauseExit}
	assert.Contains(t, withOutput.Format(), "Stderr: bad flag")
}
