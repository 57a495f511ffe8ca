package confidence

import (
	"fmt"
	"math"

	"github.com/HassDhia/deep-agent-sti/internal/report"
)

// Inputs holds the four sub-scores behind a report's confidence line.
type Inputs struct {
	AverageStrength      float64
	Coverage             float64
	QuantSupport         float64
	ContradictionPenalty float64
}

// Band is the coarse label shown to readers instead of the raw number.
type Band int

const (
	Low Band = iota
	Medium
	High
)

func (b Band) String() string {
	switch b {
	case High:
		return "High"
	case Medium:
		return "Medium"
	default:
		return "Low"
	}
}

// Result shows how each component contributed to the final value.
type Result struct {
	Inputs Inputs // after clamping
	Raw    float64
	Value  float64
	Band   Band
}

const (
	weightStrength      = 0.4
	weightCoverage      = 0.3
	weightQuant         = 0.2
	weightContradiction = 0.1

	// No report is presented as fully certain or fully worthless.
	MinValue = 0.30
	MaxValue = 0.85

	mediumThreshold = 0.50
	highThreshold   = 0.70
)

// Score combines the sub-scores into a bounded confidence value. Out of
// range or NaN inputs are clamped, never rejected.
func Score(in Inputs) Result {
	c := Inputs{
		AverageStrength:      unit(in.AverageStrength),
		Coverage:             unit(in.Coverage),
		QuantSupport:         unit(in.QuantSupport),
		ContradictionPenalty: unit(in.ContradictionPenalty),
	}
	raw := c.AverageStrength*weightStrength +
		c.Coverage*weightCoverage +
		c.QuantSupport*weightQuant +
		(1-c.ContradictionPenalty)*weightContradiction

	value := clamp(raw, MinValue, MaxValue)
	return Result{Inputs: c, Raw: raw, Value: value, Band: BandFor(value)}
}

// BandFor maps a value onto Low (<0.50), Medium (<0.70) or High.
func BandFor(value float64) Band {
	switch {
	case value < mediumThreshold:
		return Low
	case value < highThreshold:
		return Medium
	default:
		return High
	}
}

// Cap lowers the value to limit when it exceeds it and re-derives the band.
// The limit itself is kept inside the published bounds.
func Cap(r Result, limit float64) Result {
	limit = clamp(limit, MinValue, MaxValue)
	if r.Value > limit {
		r.Value = limit
		r.Band = BandFor(limit)
	}
	return r
}

// Footer renders the line printed at the bottom of a report.
func (r Result) Footer() string {
	return fmt.Sprintf("Confidence: %s (%.2f)", r.Band, r.Value)
}

// Derive computes Inputs from a run's signals and source ids.
//
// Coverage is the share of signals backed by at least one known source,
// quant support averages none/light/strong as 0/0.5/1, and the contradiction
// penalty is the share of signals flagged as contradicted.
func Derive(signals []report.Signal, sourceIDs []int) Inputs {
	if len(signals) == 0 {
		return Inputs{}
	}
	known := make(map[int]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		known[id] = true
	}

	var strength, quant float64
	var covered, contradicted int
	for _, s := range signals {
		strength += unit(s.Strength)
		quant += s.QuantSupport.Score()
		if s.Contradicted {
			contradicted++
		}
		for _, id := range s.Support {
			if known[id] {
				covered++
				break
			}
		}
	}

	n := float64(len(signals))
	return Inputs{
		AverageStrength:      strength / n,
		Coverage:             float64(covered) / n,
		QuantSupport:         quant / n,
		ContradictionPenalty: float64(contradicted) / n,
	}
}

// unit clamps v to [0,1], mapping NaN to 0.
func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
