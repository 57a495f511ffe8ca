package window

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Status is the classification of one dated item against a window.
type Status string

const (
	InWindow    Status = "in_window"
	Forecast    Status = "forecast"
	Unparseable Status = "unparseable"
)

var (
	ErrConfig = errors.New("invalid coverage window")
	ErrParse  = errors.New("unparseable date")
)

// ConfigError reports a window that cannot be built: either a bound that
// does not parse (Bound and Value set) or a start after its end.
type ConfigError struct {
	Start, End time.Time

	Bound string // "start" or "end"
	Value string
}

func (e *ConfigError) Error() string {
	if e.Bound != "" {
		return fmt.Sprintf("%s: %s: unrecognized date %q", ErrConfig, e.Bound, e.Value)
	}
	return fmt.Sprintf("%s: start %s is after end %s", ErrConfig, e.Start.Format(time.DateOnly), e.End.Format(time.DateOnly))
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ParseError marks a single item whose date could not be read.
type ParseError struct {
	ID    string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s for %q: %q", ErrParse, e.ID, e.Value)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// CoverageWindow is the inclusive date range a report summarizes.
// Both bounds are calendar dates at UTC midnight.
type CoverageWindow struct {
	start time.Time
	end   time.Time
}

// New builds a window from two dates, dropping any time-of-day.
func New(start, end time.Time) (CoverageWindow, error) {
	s, e := day(start), day(end)
	if s.After(e) {
		return CoverageWindow{}, &ConfigError{Start: s, End: e}
	}
	return CoverageWindow{start: s, end: e}, nil
}

// Parse builds a window from two date strings in any format ParseDate accepts.
func Parse(start, end string) (CoverageWindow, error) {
	s, err := ParseDate(start)
	if err != nil {
		return CoverageWindow{}, &ConfigError{Bound: "start", Value: start}
	}
	e, err := ParseDate(end)
	if err != nil {
		return CoverageWindow{}, &ConfigError{Bound: "end", Value: end}
	}
	return New(s, e)
}

func (w CoverageWindow) Start() time.Time { return w.start }
func (w CoverageWindow) End() time.Time   { return w.end }

// Days returns the number of calendar days covered, both ends included.
func (w CoverageWindow) Days() int {
	return int(w.end.Sub(w.start).Hours()/24) + 1
}

// Contains reports whether d falls on or before the end date. Dates before
// the start are not rejected here; lower-bound filtering belongs to the
// search step.
func (w CoverageWindow) Contains(d time.Time) bool {
	return !day(d).After(w.end)
}

// Label renders the window for report headers, e.g. "Nov 24 – Dec 01, 2025".
func (w CoverageWindow) Label() string {
	if w.start.Year() == w.end.Year() {
		return fmt.Sprintf("%s – %s", w.start.Format("Jan 02"), w.end.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s – %s", w.start.Format("Jan 02, 2006"), w.end.Format("Jan 02, 2006"))
}

// Item is anything with an id and a raw published date.
type Item struct {
	ID   string
	Date string
}

// Result is the per-item outcome. Err is a *ParseError when Status is
// Unparseable.
type Result struct {
	Status Status
	Date   time.Time
	Err    error
}

// Classify yields one result per item in input order. The sequence is lazy
// and may be ranged over any number of times with identical output.
func (w CoverageWindow) Classify(items []Item) iter.Seq2[string, Result] {
	return func(yield func(string, Result) bool) {
		for _, it := range items {
			if !yield(it.ID, w.classify(it)) {
				return
			}
		}
	}
}

func (w CoverageWindow) classify(it Item) Result {
	d, err := ParseDate(it.Date)
	if err != nil {
		return Result{Status: Unparseable, Err: &ParseError{ID: it.ID, Value: it.Date}}
	}
	if w.Contains(d) {
		return Result{Status: InWindow, Date: d}
	}
	return Result{Status: Forecast, Date: d}
}

// Classification is a materialized Classify run.
type Classification struct {
	Order   []string
	Results map[string]Result
}

// ClassifyAll drains Classify into a map, keeping input order.
func (w CoverageWindow) ClassifyAll(items []Item) Classification {
	c := Classification{
		Order:   make([]string, 0, len(items)),
		Results: make(map[string]Result, len(items)),
	}
	for id, r := range w.Classify(items) {
		c.Order = append(c.Order, id)
		c.Results[id] = r
	}
	return c
}

// Counts tallies results per status.
func (c Classification) Counts() map[Status]int {
	counts := map[Status]int{InWindow: 0, Forecast: 0, Unparseable: 0}
	for _, r := range c.Results {
		counts[r.Status]++
	}
	return counts
}

// IDs returns item ids with the given status in input order.
func (c Classification) IDs(status Status) []string {
	var out []string
	for _, id := range c.Order {
		if c.Results[id].Status == status {
			out = append(out, id)
		}
	}
	return out
}

// Errors returns the parse errors collected for unparseable items.
func (c Classification) Errors() []error {
	var errs []error
	for _, id := range c.Order {
		if r := c.Results[id]; r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseDate reads a published date in the formats search APIs and feeds
// return, and truncates it to a calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
