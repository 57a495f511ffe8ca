package check

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/HassDhia/deep-agent-sti/internal/citation"
	"github.com/HassDhia/deep-agent-sti/internal/confidence"
	"github.com/HassDhia/deep-agent-sti/internal/report"
	"github.com/HassDhia/deep-agent-sti/internal/vendor"
	"github.com/HassDhia/deep-agent-sti/internal/window"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleBundle() *report.Bundle {
	return &report.Bundle{
		Window: report.WindowSpec{Start: "2025-10-21", End: "2025-10-28"},
		Signals: []report.Signal{
			{ID: "s1", PublishedDate: "2025-10-23", Strength: 0.9, QuantSupport: report.QuantStrong, Support: []int{1}},
			{ID: "s2", PublishedDate: "2025-10-30", Strength: 0.7, QuantSupport: report.QuantLight, Support: []int{2}},
			{ID: "s3", PublishedDate: "next quarter", Strength: 0.5, Support: []int{3}},
		},
		Sources: []report.Source{
			{ID: 1, URL: "https://www.reuters.com/technology/2025/10/23/a", Publisher: "Reuters"},
			{ID: 2, URL: "https://openai.com/blog/b", Publisher: "OpenAI"},
			{ID: 3, URL: "https://techcrunch.com/2025/10/24/c", Publisher: "TechCrunch"},
		},
		Body: "## Topline\nDemand rose [^1]. Launch announced [^2].\n",
	}
}

func TestRunCleanBundle(t *testing.T) {
	b := sampleBundle()
	b.Body += "Funding closed [^3].\n"

	res, err := (&Runner{}).Run(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, res.Passed())
	assert.NoError(t, Finalize(res))
	assert.Empty(t, res.Citations.Dangling)
	assert.Empty(t, res.Citations.Uncited)

	st, ok := res.Status("s2")
	require.True(t, ok)
	assert.Equal(t, window.Forecast, st, "signal after window end must be tagged forecast")

	st, _ = res.Status("s1")
	assert.Equal(t, window.InWindow, st)

	st, _ = res.Status("s3")
	assert.Equal(t, window.Unparseable, st)

	assert.Equal(t, vendor.VendorAsserted, res.Vendor[2])
	assert.Equal(t, vendor.Independent, res.Vendor[1])
	assert.InDelta(t, 1.0/3, res.VendorShare, 1e-9)
}

func TestRunReportsDanglingAndUncited(t *testing.T) {
	b := sampleBundle()
	b.Body = "Claim [^1]. Claim [^2]. Claim [^5]."

	res, err := (&Runner{}).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, []int{5}, res.Citations.Dangling)
	assert.Equal(t, []int{3}, res.Citations.Uncited)
	assert.False(t, res.Passed())

	err = Finalize(res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, citation.ErrDangling))
	assert.Contains(t, err.Error(), "[^5]")
}

func TestRunOversizedCitationFails(t *testing.T) {
	b := sampleBundle()
	b.Body += "Funding closed [^3]. Typo [^123456789012345678901]."

	res, err := (&Runner{}).Run(context.Background(), b)
	require.NoError(t, err)

	assert.False(t, res.Passed())
	err = Finalize(res)
	require.Error(t, err)
	assert.ErrorIs(t, err, citation.ErrDangling)
	assert.Contains(t, err.Error(), "[^123456789012345678901]")
}

func TestRunScoresOutOfRangeStrength(t *testing.T) {
	b := sampleBundle()
	b.Body += "Funding closed [^3].\n"
	b.Signals[0].Strength = 1.2
	b.Signals[1].USFit = 3

	res, err := (&Runner{}).Run(context.Background(), b)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Confidence.Value, confidence.MinValue)
	assert.LessOrEqual(t, res.Confidence.Value, confidence.MaxValue)
	assert.True(t, res.Passed())
}

func TestRunInvalidWindow(t *testing.T) {
	b := sampleBundle()
	b.Window = report.WindowSpec{Start: "2025-10-28", End: "2025-10-21"}

	res, err := (&Runner{}).Run(context.Background(), b)
	assert.Nil(t, res)
	require.Error(t, err)

	var ce *window.ConfigError
	assert.True(t, errors.As(err, &ce))
	assert.True(t, errors.Is(err, window.ErrConfig))
}

func TestRunUnparseableWindow(t *testing.T) {
	b := sampleBundle()
	b.Window.End = "end of october"

	res, err := (&Runner{}).Run(context.Background(), b)
	assert.Nil(t, res)

	var ce *window.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "end", ce.Bound)
	assert.Equal(t, "end of october", ce.Value)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := (&Runner{}).Run(ctx, sampleBundle())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIsRepeatable(t *testing.T) {
	b := sampleBundle()
	r := &Runner{}
	first, err := r.Run(context.Background(), b)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, first.Citations, second.Citations)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Classification, second.Classification)
}

func TestVendorCap(t *testing.T) {
	b := &report.Bundle{
		Window: report.WindowSpec{Start: "2025-10-21", End: "2025-10-28"},
		Signals: []report.Signal{
			{ID: "s1", PublishedDate: "2025-10-22", Strength: 1, QuantSupport: report.QuantStrong, Support: []int{1}},
			{ID: "s2", PublishedDate: "2025-10-23", Strength: 1, QuantSupport: report.QuantStrong, Support: []int{2}},
		},
		Sources: []report.Source{
			{ID: 1, URL: "https://openai.com/blog/a", Publisher: "OpenAI"},
			{ID: 2, URL: "https://acme.com/press-release/b"},
		},
		Body: "[^1] [^2]",
	}

	uncapped, err := (&Runner{}).Run(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, confidence.MaxValue, uncapped.Confidence.Value)
	assert.False(t, uncapped.VendorCapped)

	capped, err := (&Runner{VendorCap: 0.70, VendorShare: 0.5}).Run(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, capped.VendorCapped)
	assert.Equal(t, 0.70, capped.Confidence.Value)
	assert.Equal(t, confidence.High, capped.Confidence.Band)
	assert.NotEmpty(t, capped.Warnings())
}

func TestRunLogsWarnings(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b := sampleBundle()

	_, err := (&Runner{Logger: zap.New(core)}).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("uncited sources").Len())
	assert.Equal(t, 1, logs.FilterMessage("signal date unparseable").Len())
	assert.Equal(t, 1, logs.FilterMessage("signals dated after window tagged forecast").Len())
	assert.Zero(t, logs.FilterMessage("dangling citations").Len())
}

func TestResultQualify(t *testing.T) {
	res, err := (&Runner{}).Run(context.Background(), sampleBundle())
	require.NoError(t, err)

	assert.Equal(t, "Launch is imminent (vendor-asserted)", res.Qualify("Launch is imminent", 2, ""))
	assert.Equal(t, "Demand rose", res.Qualify("Demand rose", 1, ""))
}

func TestWarningsOrder(t *testing.T) {
	res, err := (&Runner{}).Run(context.Background(), sampleBundle())
	require.NoError(t, err)

	w := res.Warnings()
	require.Len(t, w, 2)
	assert.Contains(t, w[0], "unparseable date")
	assert.Contains(t, w[1], "[^3]")
}

func TestFinalizeNil(t *testing.T) {
	assert.Error(t, Finalize(nil))
}
