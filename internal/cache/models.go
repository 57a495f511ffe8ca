package cache

import "time"

// Run is one recorded finalization check.
type Run struct {
	ID          string
	Bundle      string
	Title       string
	WindowStart time.Time
	WindowEnd   time.Time
	Confidence  float64
	Band        string
	Signals     int
	Forecast    int
	Unparseable int
	Dangling    []int
	Uncited     []int
	Passed      bool
	CheckedAt   time.Time
}

type QueryOpts struct {
	Since      time.Time
	Bundles    []string
	Search     string
	FailedOnly bool
	Limit      int
}

// PruneResult counts what a prune removed. Kept is the number of old failed
// runs left in place when failures are retained.
type PruneResult struct {
	Removed int64
	Failed  int64
	Kept    int64
}

type RunStats struct {
	Runs    int
	Failed  int
	Bundles int
	Size    int64
}

// BundleSummary is the run history of one bundle file.
type BundleSummary struct {
	Bundle     string
	Runs       int
	Failed     int
	LastPassed bool
}
