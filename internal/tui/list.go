package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
)

func relativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

func runLabel(r cache.Run) string {
	if r.Title != "" {
		return r.Title
	}
	return filepath.Base(r.Bundle)
}

func renderListItem(r cache.Run, selected bool, width int) string {
	if width < 10 {
		width = 30
	}

	mark := passStyle.Render("✓")
	if !r.Passed {
		mark = failStyle.Render("✗")
	}

	label := truncateStr(runLabel(r), width-4)
	var title string
	if selected {
		title = itemSelectedStyle.Render("> ") + mark + " " + itemSelectedStyle.Render(label)
	} else {
		title = "  " + mark + " " + itemTitleStyle.Render(label)
	}

	meta := "    " + itemBundleStyle.Render(fmt.Sprintf("%s %.2f", r.Band, r.Confidence)) +
		" " + itemTimeStyle.Render("· "+relativeTime(r.CheckedAt))

	return title + "\n" + meta
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func renderList(runs []cache.Run, cursor int, height int, width int) string {
	if len(runs) == 0 {
		return lipglossCenter("No runs recorded", width, height)
	}

	// Each item is 2 lines + 1 blank line = 3 lines
	itemHeight := 3
	visible := height / itemHeight
	if visible < 1 {
		visible = 1
	}

	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := start + visible
	if end > len(runs) {
		end = len(runs)
		start = end - visible
		if start < 0 {
			start = 0
		}
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(renderListItem(runs[i], i == cursor, width))
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func lipglossCenter(s string, width, height int) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat("\n", height/3) + strings.Repeat(" ", pad) + s
}
