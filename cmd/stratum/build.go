package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stratum/internal/app"
	"github.com/felixgeelhaar/stratum/internal/domain/config"
)

var buildCmd = &cobra.Command{
	Use:   "build <manifest>",
	Short: "Execute a build manifest",
	Long: `Build parses the manifest and executes its steps in order.

Each step is fingerprinted against everything before it. Steps whose
fingerprints are already in the snapshot cache are replayed without
executing; the first cache miss and everything after it execute for
real. The Build Record printed at the end shows which was which.

Examples:
  stratum build Stratumfile            # Build with cached layers
  stratum build Stratumfile --no-cache # Force every step to execute
  stratum build Stratumfile --timeout 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var (
	buildNoCache  bool
	buildCacheDir string
	buildTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Execute every step, ignoring cached layers")
	buildCmd.Flags().StringVar(&buildCacheDir, "cache-dir", "", "Override the snapshot cache directory")
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 0, "Per-step timeout (0 disables)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	// cobra populates the context during Execute; cancellation set up
	// there (interrupts) flows through to the executor.
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if buildCacheDir != "" {
		cfg.CacheDir = buildCacheDir
	}
	if cmd.Flags().Changed("timeout") {
		cfg.StepTimeout = config.Duration(buildTimeout)
	}

	stratum, err := app.New(cfg)
	if err != nil {
		return err
	}

	record, err := stratum.Build(ctx, args[0], app.BuildOptions{NoCache: buildNoCache})
	if record != nil {
		stratum.PrintRecord(record)
	}

	return err
}
