package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stratum/internal/app"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the snapshot cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and total size",
	RunE:  runCacheStats,
}

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Evict least-recently-used layers beyond the configured capacity",
	RunE:  runCacheGC,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheGCCmd)
}

func runCacheStats(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stratum, err := app.New(cfg)
	if err != nil {
		return err
	}

	stats, err := stratum.CacheStats()
	if err != nil {
		return fmt.Errorf("read cache stats: %w", err)
	}

	fmt.Printf("Cache: %s\n", cfg.CacheDir)
	fmt.Printf("  entries: %d\n", stats.Entries)
	fmt.Printf("  size:    %s\n", formatBytes(stats.TotalSize))
	if cfg.CacheCapacity > 0 {
		fmt.Printf("  limit:   %s\n", formatBytes(cfg.CacheCapacity))
	}

	return nil
}

func runCacheGC(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stratum, err := app.New(cfg)
	if err != nil {
		return err
	}

	evicted, err := stratum.CacheGC(context.Background())
	if err != nil {
		return fmt.Errorf("cache gc: %w", err)
	}

	if evicted == 0 {
		fmt.Println("Cache is within capacity, nothing evicted.")
		return nil
	}

	fmt.Printf("Evicted %d layers.\n", evicted)
	return nil
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
