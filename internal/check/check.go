// Package check runs the report validators as one finalization step.
//
// The four validators are independent and pure, so Run fans them out with
// an errgroup and joins the results. Cancelling ctx discards the partial
// results; nothing is persisted here.
package check

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HassDhia/deep-agent-sti/internal/citation"
	"github.com/HassDhia/deep-agent-sti/internal/confidence"
	"github.com/HassDhia/deep-agent-sti/internal/report"
	"github.com/HassDhia/deep-agent-sti/internal/vendor"
	"github.com/HassDhia/deep-agent-sti/internal/window"
)

// Runner holds the policy knobs for a finalization check.
type Runner struct {
	Tagger *vendor.Tagger
	// VendorCap limits confidence when the vendor-asserted share of sources
	// exceeds VendorShare. Zero disables the cap.
	VendorCap   float64
	VendorShare float64
	Logger      *zap.Logger
}

// Result is the combined output of all validators for one bundle.
type Result struct {
	Window         window.CoverageWindow
	Classification window.Classification
	Citations      citation.Report
	Confidence     confidence.Result
	Vendor         map[int]vendor.Label
	VendorShare    float64
	VendorCapped   bool
}

// Run validates a bundle. A malformed coverage window aborts with a
// *window.ConfigError before any validator runs; per-signal date problems
// and dangling citations are reported in the Result.
func (r *Runner) Run(ctx context.Context, b *report.Bundle) (*Result, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tagger := r.Tagger
	if tagger == nil {
		tagger = vendor.Default()
	}

	w, err := window.Parse(b.Window.Start, b.Window.End)
	if err != nil {
		return nil, err
	}

	items := make([]window.Item, len(b.Signals))
	for i, s := range b.Signals {
		items[i] = window.Item{ID: s.ID, Date: s.PublishedDate}
	}
	sourceIDs := b.SourceIDs()

	res := &Result{Window: w}
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := egCtx.Err(); err != nil {
			return err
		}
		res.Classification = w.ClassifyAll(items)
		return nil
	})
	eg.Go(func() error {
		if err := egCtx.Err(); err != nil {
			return err
		}
		res.Citations = citation.Validate(sourceIDs, b.Body)
		return nil
	})
	eg.Go(func() error {
		if err := egCtx.Err(); err != nil {
			return err
		}
		res.Confidence = confidence.Score(confidence.Derive(b.Signals, sourceIDs))
		return nil
	})
	eg.Go(func() error {
		if err := egCtx.Err(); err != nil {
			return err
		}
		res.Vendor = tagger.ClassifyAll(b.Sources)
		res.VendorShare = vendor.Share(res.Vendor)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.VendorCap > 0 && res.VendorShare > r.VendorShare {
		capped := confidence.Cap(res.Confidence, r.VendorCap)
		res.VendorCapped = capped.Value != res.Confidence.Value
		res.Confidence = capped
	}

	r.logResult(log, b, res)
	return res, nil
}

func (r *Runner) logResult(log *zap.Logger, b *report.Bundle, res *Result) {
	log = log.With(zap.String("window", res.Window.Label()))
	for _, e := range res.Classification.Errors() {
		log.Warn("signal date unparseable", zap.Error(e))
	}
	if ids := res.Classification.IDs(window.Forecast); len(ids) > 0 {
		log.Info("signals dated after window tagged forecast", zap.Strings("signals", ids))
	}
	if len(res.Citations.Uncited) > 0 {
		log.Warn("uncited sources", zap.Ints("sources", res.Citations.Uncited))
	}
	if len(res.Citations.Dangling) > 0 || len(res.Citations.Invalid) > 0 {
		log.Error("dangling citations",
			zap.Ints("citations", res.Citations.Dangling),
			zap.Strings("invalid", res.Citations.Invalid))
	}
	if res.VendorCapped {
		log.Info("confidence capped for vendor-heavy sourcing",
			zap.Float64("vendor_share", res.VendorShare),
			zap.Float64("cap", r.VendorCap))
	}
	log.Debug("check complete",
		zap.Int("signals", len(b.Signals)),
		zap.Int("sources", len(b.Sources)),
		zap.Float64("confidence", res.Confidence.Value),
		zap.Stringer("band", res.Confidence.Band))
}

// Finalize returns the error that must block shipping the report, if any.
// Uncited sources and unparseable dates are warnings and never block.
func Finalize(res *Result) error {
	if res == nil {
		return fmt.Errorf("no check result")
	}
	return res.Citations.Err()
}

// Passed reports whether the result would finalize cleanly.
func (res *Result) Passed() bool {
	return Finalize(res) == nil
}

// Status returns the window status attached to a signal.
func (res *Result) Status(signalID string) (window.Status, bool) {
	r, ok := res.Classification.Results[signalID]
	return r.Status, ok
}

// Qualify applies the vendor qualifier to a claim backed by sourceID.
func (res *Result) Qualify(claim string, sourceID int, phrase string) string {
	return vendor.Qualify(claim, res.Vendor[sourceID], phrase)
}

// Warnings collects the non-fatal findings in display order.
func (res *Result) Warnings() []string {
	var out []string
	for _, e := range res.Classification.Errors() {
		out = append(out, e.Error())
	}
	out = append(out, res.Citations.Warnings()...)
	if res.VendorCapped {
		out = append(out, fmt.Sprintf("confidence capped at %.2f: %.0f%% of sources are vendor-asserted",
			res.Confidence.Value, res.VendorShare*100))
	}
	return out
}
