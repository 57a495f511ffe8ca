package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/HassDhia/deep-agent-sti/internal/ingest"
	"github.com/HassDhia/deep-agent-sti/internal/report"
)

var (
	flagFirstID int
	flagTimeout time.Duration
)

var importFeedCmd = &cobra.Command{
	Use:   "import-feed [url|name]",
	Short: "Print a sources block built from an RSS or Atom feed",
	Long: `Fetch a feed and print its items as a numbered "sources:" block ready to paste
into a bundle. With no argument every enabled feed from config is fetched.

Items without a publish date are rejected, since they cannot be checked against
a coverage window.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		fetcher := ingest.NewRSSFetcher()
		var sources []report.Source
		if len(args) == 0 {
			feeds := cfg.EnabledFeeds()
			if len(feeds) == 0 {
				return fmt.Errorf("no enabled feeds in config")
			}
			result := ingest.FetchAll(ctx, fetcher, feeds, flagFirstID)
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  [warn] %v\n", e)
			}
			sources = result.Sources
		} else {
			feedURL, err := cfg.FeedURL(args[0])
			if err != nil {
				return err
			}
			res, err := ingest.FetchSources(ctx, fetcher, feedURL, flagFirstID)
			if err != nil {
				return err
			}
			if res.Rejected > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "  [warn] rejected %d undated item(s)\n", res.Rejected)
			}
			sources = res.Sources
		}

		out, err := ingest.ToYAML(sources)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	importFeedCmd.Flags().IntVar(&flagFirstID, "first-id", 1, "number for the first imported source")
	importFeedCmd.Flags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "fetch timeout")
}
