// Package tui is the interactive browser for recorded check runs.
package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
)

type focusPane int

const (
	focusList focusPane = iota
	focusPreview
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeFilter
	modeHelp
)

// RecheckFunc re-runs the check for a bundle file and records the result.
type RecheckFunc func(ctx context.Context, bundlePath string) (cache.Run, error)

type App struct {
	db     *cache.Cache
	runs   []cache.Run
	cursor int
	focus  focusPane
	mode   mode

	width  int
	height int

	searchInput textinput.Model
	spinner     spinner.Model
	filterBar   filterBar

	recheck       RecheckFunc
	rechecking    bool
	since         time.Time
	failedOnly    bool
	previewScroll int
	currentDate   string
	err           error
}

// RunOpts holds all parameters for launching the TUI.
type RunOpts struct {
	DB         *cache.Cache
	Bundles    []cache.BundleSummary
	Since      time.Time
	FailedOnly bool
	Recheck    RecheckFunc
}

func NewApp(opts RunOpts) *App {
	ti := textinput.New()
	ti.Placeholder = "Search runs..."
	ti.Prompt = searchPromptStyle.Render("/ ")
	ti.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	return &App{
		db:          opts.DB,
		since:       opts.Since,
		failedOnly:  opts.FailedOnly,
		recheck:     opts.Recheck,
		filterBar:   newFilterBar(opts.Bundles),
		searchInput: ti,
		spinner:     sp,
		currentDate: time.Now().Format("Jan 2"),
	}
}

func (a *App) Init() tea.Cmd {
	return a.loadRunsCmd()
}

// loadRunsCmd captures current query state into the closure to avoid races.
func (a *App) loadRunsCmd() tea.Cmd {
	opts := cache.QueryOpts{
		Since:      a.since,
		Bundles:    a.filterBar.activeBundles(),
		Search:     a.searchInput.Value(),
		FailedOnly: a.failedOnly,
	}
	db := a.db
	return func() tea.Msg {
		runs, err := db.GetRuns(opts)
		if err != nil {
			return loadErrMsg{err: err}
		}
		bundles, err := db.BundleSummaries()
		if err != nil {
			return loadErrMsg{err: err}
		}
		return runsLoadedMsg{runs: runs, bundles: bundles}
	}
}

func (a *App) recheckCmd(bundle string) tea.Cmd {
	recheck := a.recheck
	return func() tea.Msg {
		if _, err := os.Stat(bundle); err != nil {
			return recheckDoneMsg{err: fmt.Errorf("bundle no longer available: %w", err)}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		run, err := recheck(ctx, bundle)
		return recheckDoneMsg{run: run, err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		// Clear sticky error on any keypress
		a.err = nil
		return a.handleKey(msg)

	case runsLoadedMsg:
		a.runs = msg.runs
		if msg.bundles != nil {
			a.filterBar.setSummaries(msg.bundles)
		}
		if a.cursor >= len(a.runs) {
			a.cursor = max(0, len(a.runs)-1)
		}
		return a, nil

	case loadErrMsg:
		a.err = msg.err
		return a, nil

	case recheckDoneMsg:
		a.rechecking = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.cursor = 0
		return a, a.loadRunsCmd()

	case spinner.TickMsg:
		if a.rechecking {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.mode {
	case modeSearch:
		return a.handleSearchKey(msg)
	case modeFilter:
		return a.handleFilterKey(msg)
	case modeHelp:
		if msg.String() == "?" || msg.String() == "esc" || msg.String() == "q" {
			a.mode = modeNormal
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "j", "down":
		if a.focus == focusList && a.cursor < len(a.runs)-1 {
			a.cursor++
			a.previewScroll = 0
		} else if a.focus == focusPreview {
			a.previewScroll++
		}
		return a, nil
	case "k", "up":
		if a.focus == focusList && a.cursor > 0 {
			a.cursor--
			a.previewScroll = 0
		} else if a.focus == focusPreview && a.previewScroll > 0 {
			a.previewScroll--
		}
		return a, nil
	case "tab":
		if a.focus == focusList {
			a.focus = focusPreview
		} else {
			a.focus = focusList
		}
		return a, nil
	case "x":
		a.failedOnly = !a.failedOnly
		a.cursor = 0
		return a, a.loadRunsCmd()
	case "r":
		if a.recheck != nil && !a.rechecking && a.cursor < len(a.runs) {
			a.rechecking = true
			return a, tea.Batch(a.recheckCmd(a.runs[a.cursor].Bundle), a.spinner.Tick)
		}
		return a, nil
	case "/":
		a.mode = modeSearch
		a.searchInput.Focus()
		return a, textinput.Blink
	case "f":
		a.mode = modeFilter
		a.filterBar.filterMode = true
		return a, nil
	case "?":
		a.mode = modeHelp
		return a, nil
	}

	return a, nil
}

func (a *App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = modeNormal
		a.searchInput.SetValue("")
		a.searchInput.Blur()
		return a, a.loadRunsCmd()
	case "enter":
		a.mode = modeNormal
		a.searchInput.Blur()
		return a, a.loadRunsCmd()
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	return a, cmd
}

func (a *App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "f":
		a.mode = modeNormal
		a.filterBar.filterMode = false
		return a, nil
	case "left", "h":
		if a.filterBar.filterCursor > 0 {
			a.filterBar.filterCursor--
		}
		return a, nil
	case "right", "l":
		if a.filterBar.filterCursor < len(a.filterBar.bundles)-1 {
			a.filterBar.filterCursor++
		}
		return a, nil
	case " ", "enter":
		a.filterBar.toggleCurrent()
		a.cursor = 0
		return a, a.loadRunsCmd()
	case "!":
		if a.filterBar.selectFailing() {
			a.cursor = 0
			return a, a.loadRunsCmd()
		}
		return a, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		if idx < len(a.filterBar.bundles) {
			a.filterBar.toggle(a.filterBar.bundles[idx])
			a.cursor = 0
			return a, a.loadRunsCmd()
		}
		return a, nil
	}
	return a, nil
}

func (a *App) failedCount() int {
	n := 0
	for _, r := range a.runs {
		if !r.Passed {
			n++
		}
	}
	return n
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  sti")
	}

	if a.mode == modeHelp {
		return a.renderHelp()
	}

	headerHeight := 1
	filterHeight := 1
	statusHeight := 1
	contentHeight := a.height - headerHeight - filterHeight - statusHeight - 4 // borders

	listWidth := int(float64(a.width) * 0.4)
	previewWidth := a.width - listWidth - 1

	if contentHeight < 3 {
		contentHeight = 3
	}

	headerLeft := headerStyle.Render("sti history")
	headerRight := headerDateStyle.Render(a.currentDate)
	headerGap := a.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerGap < 0 {
		headerGap = 0
	}
	header := headerLeft + fmt.Sprintf("%*s", headerGap, "") + headerRight

	filter := a.filterBar.render(a.width)
	if a.mode == modeSearch {
		filter = a.searchInput.View()
	}

	innerListW := listWidth - 4 // border + padding
	listContent := renderList(a.runs, a.cursor, contentHeight, innerListW)

	var listPane string
	if a.focus == focusList {
		listPane = listPaneActiveStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	} else {
		listPane = listPaneStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	}

	var selected *cache.Run
	if len(a.runs) > 0 && a.cursor < len(a.runs) {
		selected = &a.runs[a.cursor]
	}
	innerPreviewW := previewWidth - 4
	previewContent := renderPreview(selected, innerPreviewW, contentHeight, a.previewScroll)

	var previewPane string
	if a.focus == focusPreview {
		previewPane = previewPaneActiveStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)
	} else {
		previewPane = previewPaneStyle.Width(previewWidth - 2).Height(contentHeight).Render(previewContent)
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, listPane, previewPane)

	status := renderStatusBar(
		len(a.runs),
		a.failedCount(),
		a.filterBar.activeLabel(),
		a.failedOnly,
		a.width,
		a.mode == modeSearch,
		a.rechecking,
	)

	if a.rechecking {
		status = a.spinner.View() + " " + status
	}

	if a.err != nil {
		status = lipgloss.NewStyle().Foreground(colorAccent).Render(a.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, filter, content, status)
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("sti history")
	dim := helpDimStyle

	help := title + dim.Render(" · Keyboard Shortcuts") + "\n\n" +
		dim.Render("Navigation") + "\n" +
		"  j/k, ↑/↓     Navigate run list\n" +
		"  tab           Switch focus between list and details\n\n" +
		dim.Render("Actions") + "\n" +
		"  r             Re-check the selected bundle\n" +
		"  x             Toggle failed runs only\n" +
		"  /             Search by title or bundle\n" +
		"  f             Toggle bundle filter mode\n\n" +
		dim.Render("Filter Mode") + "\n" +
		"  ←/→, h/l     Move between bundles\n" +
		"  space/enter   Toggle bundle\n" +
		"  1-9           Toggle bundle by number\n" +
		"  !             Show bundles whose last check failed\n" +
		"  esc, f        Exit filter mode\n\n" +
		dim.Render("General") + "\n" +
		"  ?             Toggle this help\n" +
		"  q, ctrl+c    Quit"

	card := helpCardStyle.Render(help)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the history browser.
func Run(opts RunOpts) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
