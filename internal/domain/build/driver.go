package build

import (
	"context"
	"time"

	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
	"github.com/felixgeelhaar/stratum/internal/ports"
)

// Driver orchestrates one Build Record per invocation. It always
// returns a Record alongside any error, so callers can tell "step K
// failed after J successful steps" apart from "nothing ran" (a parse
// failure, which happens before the Driver is involved and yields no
// Record at all).
type Driver struct {
	planner *Planner
	logger  ports.Logger
}

// NewDriver creates a new Driver.
func NewDriver(planner *Planner, logger ports.Logger) *Driver {
	return &Driver{
		planner: planner,
		logger:  logger,
	}
}

// Build walks the manifest and returns its Build Record. The Record is
// partial when a step failed: it shows which steps were hits, which
// were executed, and the exact point of failure.
func (d *Driver) Build(ctx context.Context, m *manifest.Manifest) (*Record, error) {
	started := time.Now()

	d.logger.Info(ctx, "build started",
		ports.F("base", m.BaseImage()),
		ports.F("steps", m.Len()))

	outcomes, final, err := d.planner.Walk(ctx, m)

	record := &Record{
		baseImage:  m.BaseImage(),
		outcomes:   outcomes,
		final:      final,
		startedAt:  started,
		finishedAt: time.Now(),
	}

	if err != nil {
		d.logger.Error(ctx, "build failed",
			ports.F("completed", len(outcomes)-1),
			ports.F("error", err))
		return record, err
	}

	d.logger.Info(ctx, "build finished",
		ports.F("hits", record.Hits()),
		ports.F("executed", record.Executed()),
		ports.F("duration", record.Duration().Round(time.Millisecond)))

	return record, nil
}
