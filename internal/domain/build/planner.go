package build

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/felixgeelhaar/stratum/internal/domain/cache"
	"github.com/felixgeelhaar/stratum/internal/domain/fingerprint"
	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
	"github.com/felixgeelhaar/stratum/internal/ports"
)

// Planner walks a manifest's steps in ordinal order, deciding per step
// whether to reuse a cached snapshot or execute. The walk is strictly
// sequential: each step's execution depends on its predecessor's
// snapshot, so the first failure aborts everything after it.
type Planner struct {
	store    cache.Store
	executor *Executor
	logger   ports.Logger
}

// NewPlanner creates a new Planner.
func NewPlanner(store cache.Store, executor *Executor, logger ports.Logger) *Planner {
	return &Planner{
		store:    store,
		executor: executor,
		logger:   logger,
	}
}

// Walk builds the manifest and returns the ordered step outcomes plus
// the final snapshot. On failure the outcomes cover exactly the steps
// that were attempted; the error is the failed step's.
func (p *Planner) Walk(ctx context.Context, m *manifest.Manifest) ([]StepOutcome, snapshot.Snapshot, error) {
	fp := fingerprint.Seed(m.BaseImage())
	env := NewEnvironment()

	var current snapshot.Snapshot
	var pinned fingerprint.Fingerprint
	defer p.unpin(&pinned)

	outcomes := make([]StepOutcome, 0, m.Len())

	// An uncached base lives in the transient work root rather than the
	// store; it is removed once a later step supersedes it.
	transient := false

	for _, step := range m.Steps() {
		fp = fingerprint.Next(fp, step)
		env = env.Apply(step)

		outcome, next, err := p.walkStep(ctx, step, fp, current, env, &pinned)
		outcomes = append(outcomes, outcome)
		if err != nil {
			if transient {
				_ = os.RemoveAll(current.Root)
			}
			return outcomes, snapshot.Snapshot{}, err
		}

		if transient {
			_ = os.RemoveAll(current.Root)
		}
		current = next
		transient = outcome.Outcome() == OutcomeExecuted && !outcome.Cached()
	}

	return outcomes, current, nil
}

// walkStep resolves one step: cache hit, or execute and commit.
func (p *Planner) walkStep(ctx context.Context, step manifest.Step, fp fingerprint.Fingerprint, base snapshot.Snapshot, env Environment, pinned *fingerprint.Fingerprint) (StepOutcome, snapshot.Snapshot, error) {
	start := time.Now()

	// Pin before the lookup. Pins are refcounts keyed by fingerprint,
	// so pinning ahead of the entry is safe and closes the window where
	// a concurrent eviction could remove the entry between lookup and
	// adoption.
	p.store.Pin(fp)

	cached, err := p.store.Lookup(ctx, fp)
	switch {
	case err == nil:
		p.advance(pinned, fp)
		p.logger.Debug(ctx, "cache hit",
			ports.F("ordinal", step.Ordinal()),
			ports.F("fingerprint", fp.Short()))
		return StepOutcome{
			step:     step,
			fp:       fp,
			outcome:  OutcomeHit,
			cached:   true,
			duration: time.Since(start),
		}, cached, nil

	case errors.Is(err, cache.ErrEntryNotFound):
		// Ordinary miss.

	default:
		// Storage trouble degrades to a rebuild, never an abort.
		p.logger.Warn(ctx, "cache lookup failed, rebuilding step",
			ports.F("ordinal", step.Ordinal()),
			ports.F("error", err))
	}

	produced, execErr := p.executor.Execute(ctx, step, base, env)
	if execErr != nil {
		p.store.Unpin(fp)
		return StepOutcome{
			step:     step,
			fp:       fp,
			outcome:  OutcomeFailed,
			duration: time.Since(start),
			exitCode: exitCodeOf(execErr),
			err:      execErr,
		}, snapshot.Snapshot{}, execErr
	}

	committed, putErr := p.store.Put(ctx, fp, produced)
	switch {
	case putErr == nil:
		// The committed tree lives in the store; the transient work
		// tree is no longer needed.
		_ = os.RemoveAll(produced.Root)
		p.advance(pinned, fp)
		return StepOutcome{
			step:     step,
			fp:       fp,
			outcome:  OutcomeExecuted,
			cached:   true,
			duration: time.Since(start),
		}, committed, nil

	case errors.Is(putErr, cache.ErrInconsistentCache):
		// Broken determinism invariant. Never resolved silently.
		_ = os.RemoveAll(produced.Root)
		p.store.Unpin(fp)
		return StepOutcome{
			step:     step,
			fp:       fp,
			outcome:  OutcomeFailed,
			duration: time.Since(start),
			err:      putErr,
		}, snapshot.Snapshot{}, putErr

	default:
		// The build still succeeds, just uncached.
		p.logger.Warn(ctx, "cache write failed, continuing uncached",
			ports.F("ordinal", step.Ordinal()),
			ports.F("error", putErr))
		p.store.Unpin(fp)
		p.unpin(pinned)
		return StepOutcome{
			step:     step,
			fp:       fp,
			outcome:  OutcomeExecuted,
			cached:   false,
			duration: time.Since(start),
		}, produced, nil
	}
}

// advance moves the in-flight pin to the newly adopted base. The new
// fingerprint is already pinned by walkStep.
func (p *Planner) advance(pinned *fingerprint.Fingerprint, next fingerprint.Fingerprint) {
	if !pinned.IsZero() {
		p.store.Unpin(*pinned)
	}
	*pinned = next
}

// unpin releases the in-flight pin, if any.
func (p *Planner) unpin(pinned *fingerprint.Fingerprint) {
	if !pinned.IsZero() {
		p.store.Unpin(*pinned)
		*pinned = fingerprint.Fingerprint{}
	}
}

// exitCodeOf extracts the exit status from an execution failure.
func exitCodeOf(err error) int {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.ExitCode
	}
	return 0
}
