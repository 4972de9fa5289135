package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stratum/internal/domain/build"
	"github.com/felixgeelhaar/stratum/internal/domain/config"
	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "A deterministic layered build executor",
	Long: `Stratum executes build manifests as a chain of cached layers.

Each step's fingerprint chains the instruction text to everything before
it, so an unchanged prefix is replayed from the snapshot cache and the
first changed step invalidates everything after it:
  Parse → Fingerprint → Lookup or Execute → Commit`,
	SilenceErrors: true, // We handle error formatting ourselves
	SilenceUsage:  true, // Don't show usage on error
}

// Execute runs the root command. An interrupt cancels ctx, which flows
// through to in-flight step execution.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		return err
	}
	return nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: stratum.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Complete --config with YAML files
	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows codes and underlying technical errors.
func formatError(err error) string {
	var userErr *config.UserError
	if errors.As(err, &userErr) {
		if verbose {
			return userErr.Format()
		}
		msg := userErr.Error()
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		return msg
	}

	var parseErr *manifest.ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return parseErr.Format()
		}
		return parseErr.Error()
	}

	var execErr *build.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Format()
	}

	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}
