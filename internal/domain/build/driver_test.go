package build

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stratum/internal/adapters/logging"
	"github.com/felixgeelhaar/stratum/internal/domain/cache"
	"github.com/felixgeelhaar/stratum/internal/ports"
)

func newTestDriver(t *testing.T) (*Driver, *fakeRunner) {
	t.Helper()
	store := cache.NewFileStore(t.TempDir())
	planner, runner := newTestPlanner(t, store)
	return NewDriver(planner, logging.NewNopLogger()), runner
}

func TestDriver_Build(t *testing.T) {
	t.Parallel()

	t.Run("returns a complete record on success", func(t *testing.T) {
		t.Parallel()

		driver, _ := newTestDriver(t)
		record, err := driver.Build(context.Background(), parseManifest(t, threeStepManifest))

		require.NoError(t, err)
		assert.Equal(t, "alpine:3.20", record.BaseImage())
		assert.True(t, record.Success())
		assert.Len(t, record.Outcomes(), 3)
		assert.False(t, record.Final().IsZero())
		assert.GreaterOrEqual(t, record.Duration().Nanoseconds(), int64(0))
	})

	t.Run("returns a partial record on step failure", func(t *testing.T) {
		t.Parallel()

		driver, runner := newTestDriver(t)
		runner.handler = func(_ context.Context, inv ports.Invocation) (ports.CommandResult, error) {
			if strings.Contains(inv.Script, "install B") {
				return ports.CommandResult{ExitCode: 1, Stderr: "package not found"}, nil
			}
			return ports.CommandResult{ExitCode: 0}, nil
		}

		record, err := driver.Build(context.Background(), parseManifest(t, threeStepManifest))

		require.Error(t, err)
		require.NotNil(t, record, "a failed build still yields its record")
		assert.False(t, record.Success())
		assert.Len(t, record.Outcomes(), 2, "first step plus the failure, nothing after")

		failed, ok := record.Failed()
		require.True(t, ok)
		assert.Equal(t, 2, failed.Step().Ordinal())
		assert.Equal(t, 1, failed.ExitCode())
	})

	t.Run("manifest with only a base image yields an empty record", func(t *testing.T) {
		t.Parallel()

		driver, runner := newTestDriver(t)
		record, err := driver.Build(context.Background(), parseManifest(t, "FROM alpine:3.20\n"))

		require.NoError(t, err)
		assert.Empty(t, record.Outcomes())
		assert.True(t, record.Final().IsZero())
		assert.Zero(t, runner.callCount())
	})
}
