package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
)

// filterBar toggles which bundles the history list shows. Each tab carries
// the bundle's failed-run count, and bundles whose latest check failed are
// marked.
type filterBar struct {
	bundles      []string
	summaries    map[string]cache.BundleSummary
	active       map[string]bool
	filterMode   bool
	filterCursor int
}

func newFilterBar(summaries []cache.BundleSummary) filterBar {
	f := filterBar{active: make(map[string]bool)}
	f.setSummaries(summaries)
	return f
}

// setSummaries replaces the bundle list, dropping selections for bundles
// that no longer have runs.
func (f *filterBar) setSummaries(summaries []cache.BundleSummary) {
	f.bundles = make([]string, 0, len(summaries))
	f.summaries = make(map[string]cache.BundleSummary, len(summaries))
	for _, s := range summaries {
		f.bundles = append(f.bundles, s.Bundle)
		f.summaries[s.Bundle] = s
	}
	for b := range f.active {
		if _, ok := f.summaries[b]; !ok {
			delete(f.active, b)
		}
	}
	if f.filterCursor >= len(f.bundles) {
		f.filterCursor = max(0, len(f.bundles)-1)
	}
}

func (f *filterBar) toggle(bundle string) {
	if f.active[bundle] {
		delete(f.active, bundle)
	} else {
		f.active[bundle] = true
	}
}

func (f *filterBar) toggleCurrent() {
	if f.filterCursor < len(f.bundles) {
		f.toggle(f.bundles[f.filterCursor])
	}
}

// selectFailing narrows the filter to bundles whose latest run failed. It
// reports false and leaves the selection alone when every bundle passes.
func (f *filterBar) selectFailing() bool {
	var failing []string
	for _, b := range f.bundles {
		if !f.summaries[b].LastPassed {
			failing = append(failing, b)
		}
	}
	if len(failing) == 0 {
		return false
	}
	clear(f.active)
	for _, b := range failing {
		f.active[b] = true
	}
	return true
}

func (f *filterBar) activeBundles() []string {
	if len(f.active) == 0 {
		return nil // nil = all bundles
	}
	var out []string
	for _, b := range f.bundles {
		if f.active[b] {
			out = append(out, b)
		}
	}
	return out
}

func (f *filterBar) activeLabel() string {
	active := f.activeBundles()
	if active == nil {
		return "All"
	}
	names := make([]string, len(active))
	for i, b := range active {
		names[i] = filepath.Base(b)
	}
	return strings.Join(names, ", ")
}

// tabLabel renders a bundle as "weekly.yaml" or "weekly.yaml ✗2" when it
// has failed runs.
func (f *filterBar) tabLabel(bundle string) string {
	label := filepath.Base(bundle)
	s := f.summaries[bundle]
	if s.Failed == 0 {
		return label
	}
	mark := fmt.Sprintf("✗%d", s.Failed)
	if !s.LastPassed {
		mark = failStyle.Render(mark)
	}
	return label + " " + mark
}

func (f *filterBar) render(width int) string {
	sep := tabSeparatorStyle.Render(" · ")
	var parts []string

	if len(f.active) == 0 {
		parts = append(parts, tabActiveStyle.Render("All"))
	} else {
		parts = append(parts, tabInactiveStyle.Render("All"))
	}

	for i, b := range f.bundles {
		style := tabInactiveStyle
		if f.active[b] {
			style = tabActiveStyle
		}
		label := f.tabLabel(b)
		if f.filterMode && i == f.filterCursor {
			label = "[" + label + "]"
		}
		parts = append(parts, style.Render(label))
	}

	// Stop adding tabs once the row would overflow
	var row string
	for i, part := range parts {
		candidate := row
		if i > 0 {
			candidate += sep
		}
		candidate += part
		if lipgloss.Width(candidate) > width && row != "" {
			break
		}
		row = candidate
	}

	barStyle := lipgloss.NewStyle().
		Background(colorSurface).
		Width(width).
		PaddingLeft(1)
	return barStyle.Render(row)
}
