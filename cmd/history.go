package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
	"github.com/HassDhia/deep-agent-sti/internal/config"
	"github.com/HassDhia/deep-agent-sti/internal/tui"
)

var (
	flagSince  string
	flagFailed bool
	flagPlain  bool
	flagLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded check runs",
	Long: `Open the run history browser. Falls back to a plain table when stdout is not
a terminal or --plain is given.`,
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

		var since time.Time
		if flagSince != "" {
			d, err := config.ParseDuration(flagSince)
			if err != nil {
				return fmt.Errorf("invalid --since value: %w", err)
			}
			since = time.Now().Add(-d)
		}

		if flagPlain || !isTerminal(os.Stdout) {
			runs, err := db.GetRuns(cache.QueryOpts{Since: since, FailedOnly: flagFailed, Limit: flagLimit})
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		}

		bundles, err := db.BundleSummaries()
		if err != nil {
			return err
		}
		log := newLogger()
		defer log.Sync() //nolint:errcheck

		return tui.Run(tui.RunOpts{
			DB:         db,
			Bundles:    bundles,
			Since:      since,
			FailedOnly: flagFailed,
			Recheck:    recheckBundle(cfg, db, log),
		})
	},
}

func init() {
	historyCmd.Flags().StringVar(&flagSince, "since", "", "only show runs from the last duration (e.g., 7d, 24h)")
	historyCmd.Flags().BoolVar(&flagFailed, "failed", false, "only show failed runs")
	historyCmd.Flags().BoolVar(&flagPlain, "plain", false, "print a plain table instead of the browser")
	historyCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum rows in plain output")
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printRuns(w io.Writer, runs []cache.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECKED\tRESULT\tCONFIDENCE\tBUNDLE\tDANGLING\tUNCITED")
	for _, r := range runs {
		result := "pass"
		if !r.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %.2f\t%s\t%s\t%s\n",
			r.CheckedAt.Format("2006-01-02 15:04"), result, r.Band, r.Confidence, r.Bundle,
			formatIDs(r.Dangling), formatIDs(r.Uncited))
	}
	return tw.Flush()
}
