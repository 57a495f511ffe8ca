package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
	"github.com/HassDhia/deep-agent-sti/internal/window"
)

func renderPreview(run *cache.Run, width, height, scroll int) string {
	if run == nil {
		return lipglossCenter("Select a run", width, height)
	}

	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	title := previewTitleStyle.Width(contentWidth).Render(runLabel(*run))

	verdict := passStyle.Render("PASSED")
	if !run.Passed {
		verdict = failStyle.Render("FAILED")
	}

	rows := []string{
		field("Result", verdict),
		field("Bundle", run.Bundle),
		field("Window", windowLabel(*run)),
		field("Confidence", fmt.Sprintf("%s (%.2f)", run.Band, run.Confidence)),
		field("Signals", fmt.Sprintf("%d (%d forecast, %d unparseable)", run.Signals, run.Forecast, run.Unparseable)),
		field("Checked", run.CheckedAt.Format("Jan 2, 2006 15:04")),
	}

	var findings []string
	if len(run.Dangling) > 0 {
		findings = append(findings, failStyle.Render("Dangling citations: ")+markers(run.Dangling))
	}
	if len(run.Uncited) > 0 {
		findings = append(findings, warnStyle.Render("Uncited sources: ")+markers(run.Uncited))
	}
	if len(findings) == 0 {
		findings = append(findings, previewBodyStyle.Render("No citation findings."))
	}
	body := previewBodyStyle.Width(contentWidth).Render(wrapText(strings.Join(findings, "\n"), contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), "", body)

	lines := strings.Split(content, "\n")
	if scroll > 0 && scroll < len(lines) {
		lines = lines[scroll:]
	}

	// Pad to fill height
	if len(lines) < height {
		lines = append(lines, make([]string, height-len(lines))...)
	} else if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func field(label, value string) string {
	return previewLabelStyle.Render(fmt.Sprintf("%-11s", label)) + value
}

func windowLabel(r cache.Run) string {
	w, err := window.New(r.WindowStart, r.WindowEnd)
	if err != nil {
		return "(invalid window)"
	}
	return w.Label()
}

func markers(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "[^" + strconv.Itoa(id) + "]"
	}
	return strings.Join(parts, " ")
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if lipgloss.Width(line)+1+lipgloss.Width(w) > width {
				out = append(out, line)
				line = w
			} else {
				line += " " + w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
