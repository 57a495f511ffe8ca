package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
	"github.com/HassDhia/deep-agent-sti/internal/check"
	"github.com/HassDhia/deep-agent-sti/internal/config"
	"github.com/HassDhia/deep-agent-sti/internal/report"
	"github.com/HassDhia/deep-agent-sti/internal/vendor"
	"github.com/HassDhia/deep-agent-sti/internal/window"
)

var (
	flagNoRecord bool
	flagJSON     bool
)

var (
	passLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("#25D366")).Bold(true)
	failLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
	warnLabel  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	dimLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	titleLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#7571F9")).Bold(true)
)

var checkCmd = &cobra.Command{
	Use:   "check <bundle>",
	Short: "Validate a report bundle",
	Long: `Load a report bundle (YAML or JSON), run every validator and print the result.

Dangling citations and an invalid coverage window fail the command. Uncited
sources and unparseable signal dates are reported as warnings. Each run is
recorded in the local history unless --no-record is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger()
		defer log.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		b, err := report.Load(args[0])
		if err != nil {
			return err
		}

		res, err := newRunner(cfg, log).Run(ctx, b)
		if err != nil {
			return fmt.Errorf("checking %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			if err := writeJSON(out, b, res); err != nil {
				return err
			}
		} else {
			printSummary(out, b, res, cfg.Qualifier())
		}

		if !flagNoRecord {
			if _, err := recordRun(b, res); err != nil {
				log.Warn("run not recorded", zap.Error(err))
			}
		}

		return check.Finalize(res)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&flagNoRecord, "no-record", false, "do not record this run in history")
	checkCmd.Flags().BoolVar(&flagJSON, "json", false, "print the result as JSON")
}

func newRunner(cfg *config.Config, log *zap.Logger) *check.Runner {
	limit, share := cfg.VendorCap()
	return &check.Runner{
		Tagger:      cfg.Tagger(),
		VendorCap:   limit,
		VendorShare: share,
		Logger:      log,
	}
}

// runFromResult flattens a check result into a history row.
func runFromResult(b *report.Bundle, res *check.Result) cache.Run {
	bundle := b.Path
	if abs, err := filepath.Abs(b.Path); err == nil && b.Path != "" {
		bundle = abs
	}
	counts := res.Classification.Counts()
	return cache.Run{
		Bundle:      bundle,
		Title:       b.Title,
		WindowStart: res.Window.Start(),
		WindowEnd:   res.Window.End(),
		Confidence:  res.Confidence.Value,
		Band:        res.Confidence.Band.String(),
		Signals:     len(b.Signals),
		Forecast:    counts[window.Forecast],
		Unparseable: counts[window.Unparseable],
		Dangling:    res.Citations.Dangling,
		Uncited:     res.Citations.Uncited,
		Passed:      res.Passed(),
	}
}

func recordRun(b *report.Bundle, res *check.Result) (cache.Run, error) {
	db, err := cache.Open(config.CachePath())
	if err != nil {
		return cache.Run{}, fmt.Errorf("opening cache: %w", err)
	}
	defer db.Close()
	return db.RecordRun(runFromResult(b, res))
}

// recheckBundle loads and checks a bundle again, recording into db.
func recheckBundle(cfg *config.Config, db *cache.Cache, log *zap.Logger) func(context.Context, string) (cache.Run, error) {
	return func(ctx context.Context, path string) (cache.Run, error) {
		b, err := report.Load(path)
		if err != nil {
			return cache.Run{}, err
		}
		res, err := newRunner(cfg, log).Run(ctx, b)
		if err != nil {
			return cache.Run{}, err
		}
		return db.RecordRun(runFromResult(b, res))
	}
}

func printSummary(w io.Writer, b *report.Bundle, res *check.Result, qualifier string) {
	name := b.Title
	if name == "" {
		name = filepath.Base(b.Path)
	}
	fmt.Fprintln(w, titleLabel.Render(name)+" "+dimLabel.Render(fmt.Sprintf("%s (%d days)", res.Window.Label(), res.Window.Days())))

	counts := res.Classification.Counts()
	fmt.Fprintf(w, "  signals   %d in window, %d forecast, %d unparseable\n",
		counts[window.InWindow], counts[window.Forecast], counts[window.Unparseable])
	for _, id := range res.Classification.IDs(window.Forecast) {
		fmt.Fprintf(w, "            %s %s\n", warnLabel.Render("forecast"), id)
	}

	fmt.Fprintf(w, "  sources   %d listed, %d cited, %.0f%% vendor-asserted\n",
		len(b.Sources), len(res.Citations.Cited), res.VendorShare*100)
	for _, s := range b.Sources {
		if res.Vendor[s.ID] == vendor.VendorAsserted {
			fmt.Fprintf(w, "            [^%d] %s\n", s.ID, vendor.Qualify(sourceName(s), vendor.VendorAsserted, qualifier))
		}
	}

	fmt.Fprintf(w, "  %s\n", res.Confidence.Footer())

	for _, warn := range res.Warnings() {
		fmt.Fprintf(w, "  %s %s\n", warnLabel.Render("warn"), warn)
	}

	if err := check.Finalize(res); err != nil {
		fmt.Fprintf(w, "%s %v\n", failLabel.Render("FAIL"), err)
		return
	}
	fmt.Fprintln(w, passLabel.Render("PASS"))
}

func sourceName(s report.Source) string {
	switch {
	case s.Title != "":
		return s.Title
	case s.Publisher != "":
		return s.Publisher
	default:
		return s.URL
	}
}

type jsonResult struct {
	Bundle       string            `json:"bundle"`
	Window       string            `json:"window"`
	WindowDays   int               `json:"window_days"`
	Passed       bool              `json:"passed"`
	Signals      map[string]string `json:"signals"`
	Dangling     []int             `json:"dangling_citations"`
	Invalid      []string          `json:"invalid_citations"`
	Uncited      []int             `json:"uncited_sources"`
	Confidence   float64           `json:"confidence"`
	Band         string            `json:"band"`
	VendorShare  float64           `json:"vendor_share"`
	VendorCapped bool              `json:"vendor_capped"`
	Vendor       map[int]string    `json:"vendor"`
	Warnings     []string          `json:"warnings"`
	Error        string            `json:"error,omitempty"`
}

func writeJSON(w io.Writer, b *report.Bundle, res *check.Result) error {
	out := jsonResult{
		Bundle:       b.Path,
		Window:       res.Window.Label(),
		WindowDays:   res.Window.Days(),
		Passed:       res.Passed(),
		Signals:      make(map[string]string, len(res.Classification.Order)),
		Dangling:     res.Citations.Dangling,
		Invalid:      res.Citations.Invalid,
		Uncited:      res.Citations.Uncited,
		Confidence:   res.Confidence.Value,
		Band:         res.Confidence.Band.String(),
		VendorShare:  res.VendorShare,
		VendorCapped: res.VendorCapped,
		Vendor:       make(map[int]string, len(res.Vendor)),
		Warnings:     res.Warnings(),
	}
	for id, r := range res.Classification.Results {
		out.Signals[id] = string(r.Status)
	}
	for id, l := range res.Vendor {
		out.Vendor[id] = string(l)
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if err := check.Finalize(res); err != nil {
		out.Error = err.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("[^%d]", id)
	}
	return strings.Join(parts, ", ")
}
