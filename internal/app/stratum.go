// Package app provides the main application logic for stratum.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/felixgeelhaar/stratum/internal/adapters/command"
	"github.com/felixgeelhaar/stratum/internal/adapters/logging"
	"github.com/felixgeelhaar/stratum/internal/domain/build"
	"github.com/felixgeelhaar/stratum/internal/domain/cache"
	"github.com/felixgeelhaar/stratum/internal/domain/config"
	"github.com/felixgeelhaar/stratum/internal/domain/fingerprint"
	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
	"github.com/felixgeelhaar/stratum/internal/ports"
)

// Stratum is the main application orchestrator: it wires the adapters
// to the build domain and owns the user-facing output.
type Stratum struct {
	cfg    config.Config
	store  *cache.FileStore
	runner ports.CommandRunner
	logger ports.Logger
	out    io.Writer
	styles Styles
}

// Option configures the application.
type Option func(*Stratum)

// WithOutput sets the writer for user-facing output (default: stdout).
func WithOutput(out io.Writer) Option {
	return func(s *Stratum) {
		s.out = out
	}
}

// WithRunner overrides the command runner (used in tests).
func WithRunner(runner ports.CommandRunner) Option {
	return func(s *Stratum) {
		s.runner = runner
	}
}

// WithLogger overrides the logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Stratum) {
		s.logger = logger
	}
}

// New creates a new Stratum application from a validated config.
func New(cfg config.Config, opts ...Option) (*Stratum, error) {
	s := &Stratum{
		cfg:    cfg,
		out:    os.Stdout,
		styles: DefaultStyles(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		loggerOpts := []logging.ConsoleLoggerOption{
			logging.WithLevel(ports.ParseLevel(cfg.Log.Level)),
		}
		if cfg.Log.Format == "json" {
			loggerOpts = append(loggerOpts, logging.WithJSONFormat(true))
		}
		s.logger = logging.NewConsoleLogger(loggerOpts...)
	}

	if s.runner == nil {
		s.runner = command.NewShellRunner()
	}

	s.store = cache.NewFileStore(cfg.CacheDir, cache.WithCapacity(cfg.CacheCapacity))

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	return s, nil
}

// BuildOptions tunes a single build invocation.
type BuildOptions struct {
	// NoCache forces every step to execute. Results are still
	// committed to the store for later builds.
	NoCache bool
}

// Build parses the manifest at manifestPath and executes it, returning
// the Build Record. A parse failure yields no record; a step failure
// yields the partial record alongside the error.
func (s *Stratum) Build(ctx context.Context, manifestPath string, opts BuildOptions) (*build.Record, error) {
	m, err := manifest.ParseFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var store cache.Store = s.store
	if opts.NoCache {
		store = bypassStore{s.store}
	}

	executor := build.NewExecutor(s.runner, s.cfg.WorkDir).
		WithTimeout(s.cfg.StepTimeout.Std())
	planner := build.NewPlanner(store, executor, s.logger)
	driver := build.NewDriver(planner, s.logger)

	return driver.Build(ctx, m)
}

// CacheGC evicts least-recently-used entries until the store is within
// its configured capacity.
func (s *Stratum) CacheGC(ctx context.Context) (int, error) {
	return s.store.Evict(ctx)
}

// CacheStats returns entry count and total size of the store.
func (s *Stratum) CacheStats() (cache.Stats, error) {
	return s.store.Stats()
}

// PrintRecord renders a Build Record to the output writer.
func (s *Stratum) PrintRecord(record *build.Record) {
	s.printf("\nBuild Record\n")
	s.printf("============\n\n")
	s.printf("Base: %s\n\n", record.BaseImage())

	for _, o := range record.Outcomes() {
		s.printOutcome(o)
	}

	failed, hasFailed := record.Failed()

	s.printf("\nSummary: %d hit, %d executed (%s)\n",
		record.Hits(), record.Executed(), record.Duration().Round(time.Millisecond))

	if hasFailed {
		s.printf("%s\n", s.styles.Error.Render(
			fmt.Sprintf("Build failed at step %d.", failed.Step().Ordinal())))
		return
	}

	if final := record.Final(); !final.IsZero() {
		s.printf("Snapshot: %s\n", final.ID)
	}
}

// printOutcome renders one step line.
func (s *Stratum) printOutcome(o build.StepOutcome) {
	fp := s.styles.Muted.Render(o.Fingerprint().Short())

	switch o.Outcome() {
	case build.OutcomeHit:
		mark := s.styles.Success.Render("✓")
		s.printf("  %s [%d] %s  %s (cached)\n", mark, o.Step().Ordinal(), o.Step().Text(), fp)

	case build.OutcomeExecuted:
		mark := s.styles.Success.Render("✓")
		note := ""
		if !o.Cached() {
			note = " (uncached)"
		}
		s.printf("  %s [%d] %s  %s %s%s\n", mark, o.Step().Ordinal(), o.Step().Text(), fp,
			o.Duration().Round(time.Millisecond), note)

	case build.OutcomeFailed:
		mark := s.styles.Error.Render("✗")
		s.printf("  %s [%d] %s: %v\n", mark, o.Step().Ordinal(), o.Step().Text(), o.Error())
	}
}

// printf writes to the output writer, ignoring errors.
func (s *Stratum) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// bypassStore misses every lookup while keeping writes flowing to the
// underlying store.
type bypassStore struct {
	cache.Store
}

func (b bypassStore) Lookup(context.Context, fingerprint.Fingerprint) (snapshot.Snapshot, error) {
	return snapshot.Snapshot{}, cache.ErrEntryNotFound
}
