package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HassDhia/deep-agent-sti/internal/browser"
	"github.com/HassDhia/deep-agent-sti/internal/report"
	"github.com/HassDhia/deep-agent-sti/internal/vendor"
)

var openCmd = &cobra.Command{
	Use:   "open <bundle> <source-id>",
	Short: "Open a bundle source in the browser",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		b, err := report.Load(args[0])
		if err != nil {
			return err
		}
		src, err := lookupSource(b, args[1])
		if err != nil {
			return err
		}

		label := cfg.Tagger().Classify(src)
		fmt.Fprintf(cmd.OutOrStdout(), "[^%d] %s\n", src.ID, vendor.Qualify(sourceName(src), label, cfg.Qualifier()))
		return browser.Open(src.URL)
	},
}

func lookupSource(b *report.Bundle, arg string) (report.Source, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return report.Source{}, fmt.Errorf("invalid source id %q", arg)
	}
	src, ok := b.SourceByID(id)
	if !ok {
		return report.Source{}, fmt.Errorf("bundle has no source [^%d]", id)
	}
	return src, nil
}
