package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
	"github.com/HassDhia/deep-agent-sti/internal/config"
)

var (
	flagPruneOlderThan  string
	flagPruneKeepFailed bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old runs from the local history",
	Long: `Delete recorded runs older than the retention period and reclaim disk space.

Uses the retention value from config (default: 90d) unless overridden with --older-than.
Pass --keep-failed to leave failing runs in the history regardless of age.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := cache.Open(config.CachePath())
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()

		retention := cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := config.ParseDuration(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}
		return pruneRuns(cmd.OutOrStdout(), db, retention, flagPruneKeepFailed)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := config.CachePath()
		db, err := cache.Open(dbPath)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer db.Close()
		return printStats(cmd.OutOrStdout(), db, dbPath)
	},
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
	pruneCmd.Flags().BoolVar(&flagPruneKeepFailed, "keep-failed", false, "keep failing runs regardless of age")
}

func pruneRuns(w io.Writer, db *cache.Cache, retention time.Duration, keepFailed bool) error {
	pr, err := db.Prune(retention, keepFailed)
	if err != nil {
		return fmt.Errorf("pruning: %w", err)
	}

	switch {
	case pr.Removed == 0:
		fmt.Fprintln(w, "Nothing to prune.")
	case pr.Failed > 0:
		fmt.Fprintf(w, "Pruned %d run(s) older than %s, %d of them failed.\n", pr.Removed, formatDuration(retention), pr.Failed)
	default:
		fmt.Fprintf(w, "Pruned %d run(s) older than %s.\n", pr.Removed, formatDuration(retention))
	}
	if pr.Kept > 0 {
		fmt.Fprintf(w, "Kept %d failed run(s) older than %s.\n", pr.Kept, formatDuration(retention))
	}
	return nil
}

func printStats(w io.Writer, db *cache.Cache, dbPath string) error {
	st, err := db.Stats(dbPath)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	summaries, err := db.BundleSummaries()
	if err != nil {
		return err
	}

	var failing []string
	for _, s := range summaries {
		if !s.LastPassed {
			failing = append(failing, s.Bundle)
		}
	}

	fmt.Fprintf(w, "History: %s\n", dbPath)
	fmt.Fprintf(w, "Runs: %d (%d failed)\n", st.Runs, st.Failed)
	fmt.Fprintf(w, "Bundles: %d (%d failing)\n", st.Bundles, len(failing))
	for _, b := range failing {
		fmt.Fprintf(w, "  failing: %s\n", b)
	}
	fmt.Fprintf(w, "Size: %s\n", formatBytes(st.Size))
	if last, err := db.LastCheck(); err == nil {
		fmt.Fprintf(w, "Last check: %s\n", last.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
