package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HassDhia/deep-agent-sti/internal/config"
	"github.com/HassDhia/deep-agent-sti/internal/logging"
	"github.com/HassDhia/deep-agent-sti/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sti",
	Short: "Validate intelligence report bundles before they ship",
	Long: `sti checks a generated report bundle for editorial consistency: signals dated
after the coverage window are tagged forecast, every citation must resolve to a
source, uncited sources are flagged, sources from vendor channels are labelled
and the report confidence is scored within its published bounds.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	versionCmd.Flags().BoolVar(&flagCheckUpdate, "check", false, "check GitHub for a newer release")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importFeedCmd)
	rootCmd.AddCommand(openCmd)
}

var flagCheckUpdate bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sti %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheckUpdate {
			return
		}
		if res := update.Check(cmd.Context(), version); res != nil {
			fmt.Fprintf(out, "A newer release is available: v%s\n", res.LatestVersion)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger() *zap.Logger {
	log, err := logging.New(flagVerbose)
	if err != nil {
		return logging.Nop()
	}
	return log
}
