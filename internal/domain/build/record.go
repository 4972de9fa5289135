package build

import (
	"time"

	"github.com/felixgeelhaar/stratum/internal/domain/fingerprint"
	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
)

// Outcome classifies what happened to one step during a build.
type Outcome int

const (
	// OutcomeHit means the step's snapshot was reused from cache.
	OutcomeHit Outcome = iota
	// OutcomeExecuted means the step was executed (a cache miss).
	OutcomeExecuted
	// OutcomeFailed means the step was executed and failed, aborting
	// the build.
	OutcomeFailed
)

// String returns the outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeExecuted:
		return "executed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StepOutcome captures the result of one step within a build.
type StepOutcome struct {
	step     manifest.Step
	fp       fingerprint.Fingerprint
	outcome  Outcome
	cached   bool
	duration time.Duration
	exitCode int
	err      error
}

// Step returns the step this outcome belongs to.
func (o StepOutcome) Step() manifest.Step {
	return o.step
}

// Fingerprint returns the step's chained fingerprint.
func (o StepOutcome) Fingerprint() fingerprint.Fingerprint {
	return o.fp
}

// Outcome returns the hit/executed/failed classification.
func (o StepOutcome) Outcome() Outcome {
	return o.outcome
}

// Cached reports whether the step's snapshot is in the cache store.
// An executed step can end up uncached when the store was unavailable;
// the build still succeeds but is reported as uncached.
func (o StepOutcome) Cached() bool {
	return o.cached
}

// Duration returns how long the step took.
func (o StepOutcome) Duration() time.Duration {
	return o.duration
}

// ExitCode returns the instruction's exit status (0 for hits).
func (o StepOutcome) ExitCode() int {
	return o.exitCode
}

// Error returns the failure, if any.
func (o StepOutcome) Error() error {
	return o.err
}

// Record is the audit trail of one build invocation: the ordered
// per-step outcomes plus the final snapshot handle. Immutable once the
// driver returns it.
type Record struct {
	baseImage  string
	outcomes   []StepOutcome
	final      snapshot.Snapshot
	startedAt  time.Time
	finishedAt time.Time
}

// BaseImage returns the manifest's declared base image.
func (r *Record) BaseImage() string {
	return r.baseImage
}

// Outcomes returns the ordered per-step outcomes. A failed build has
// outcomes only up to and including the failed step.
func (r *Record) Outcomes() []StepOutcome {
	copied := make([]StepOutcome, len(r.outcomes))
	copy(copied, r.outcomes)
	return copied
}

// Final returns the snapshot produced by the last step. Zero when the
// build failed or the manifest had no steps beyond the base image.
func (r *Record) Final() snapshot.Snapshot {
	return r.final
}

// Success reports whether every step completed.
func (r *Record) Success() bool {
	for _, o := range r.outcomes {
		if o.outcome == OutcomeFailed {
			return false
		}
	}
	return true
}

// Hits returns the number of cache hits.
func (r *Record) Hits() int {
	count := 0
	for _, o := range r.outcomes {
		if o.outcome == OutcomeHit {
			count++
		}
	}
	return count
}

// Executed returns the number of executed steps, failed ones included.
func (r *Record) Executed() int {
	count := 0
	for _, o := range r.outcomes {
		if o.outcome != OutcomeHit {
			count++
		}
	}
	return count
}

// Failed returns the failed step's outcome, if any.
func (r *Record) Failed() (StepOutcome, bool) {
	for _, o := range r.outcomes {
		if o.outcome == OutcomeFailed {
			return o, true
		}
	}
	return StepOutcome{}, false
}

// Duration returns the wall-clock duration of the build.
func (r *Record) Duration() time.Duration {
	return r.finishedAt.Sub(r.startedAt)
}
