package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(runCount, failedCount int, filterLabel string, failedOnly bool, width int, searching bool, rechecking bool) string {
	left := fmt.Sprintf(" %d runs", runCount)
	if failedCount > 0 {
		left += " · " + failStyle.Render(fmt.Sprintf("%d failed", failedCount))
	}
	if filterLabel != "All" {
		left += " · " + filterLabel
	}
	if failedOnly {
		left += " · failed only"
	}

	right := " / search  f filter  x failed  r recheck  q quit "

	if searching {
		right = " esc cancel  enter search "
	}
	if rechecking {
		left += " (checking...)"
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).Render(bar)
}
