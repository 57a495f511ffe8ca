package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testRuns() []cache.Run {
	now := time.Now()
	start := time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC)
	return []cache.Run{
		{ID: "a", Bundle: "/tmp/weekly.yaml", Title: "Weekly", WindowStart: start, WindowEnd: end,
			Confidence: 0.72, Band: "High", Passed: true, CheckedAt: now.Add(-time.Hour)},
		{ID: "b", Bundle: "/tmp/gpu.yaml", WindowStart: start, WindowEnd: end,
			Confidence: 0.41, Band: "Low", Dangling: []int{7}, Uncited: []int{2, 3}, CheckedAt: now.Add(-2 * time.Hour)},
	}
}

func testDB(t *testing.T) *cache.Cache {
	t.Helper()
	db, err := cache.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, r := range testRuns() {
		if _, err := db.RecordRun(r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	return db
}

func TestLoadRuns(t *testing.T) {
	app := NewApp(RunOpts{DB: testDB(t)})

	msg := app.Init()()
	loaded, ok := msg.(runsLoadedMsg)
	if !ok {
		t.Fatalf("expected runsLoadedMsg, got %T", msg)
	}
	if len(loaded.runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(loaded.runs))
	}

	app.Update(loaded)
	if app.failedCount() != 1 {
		t.Errorf("expected 1 failed run, got %d", app.failedCount())
	}
}

func TestFailedOnlyToggle(t *testing.T) {
	app := NewApp(RunOpts{DB: testDB(t)})

	_, cmd := app.Update(key("x"))
	if !app.failedOnly {
		t.Fatal("x should enable failed-only")
	}
	loaded := cmd().(runsLoadedMsg)
	if len(loaded.runs) != 1 || loaded.runs[0].ID != "b" {
		t.Errorf("expected only run b, got %+v", loaded.runs)
	}
}

func TestCursorMovement(t *testing.T) {
	app := NewApp(RunOpts{})
	app.Update(runsLoadedMsg{runs: testRuns()})

	app.Update(key("j"))
	if app.cursor != 1 {
		t.Errorf("expected cursor 1, got %d", app.cursor)
	}
	app.Update(key("j"))
	if app.cursor != 1 {
		t.Errorf("cursor should stop at the last run, got %d", app.cursor)
	}
	app.Update(key("k"))
	if app.cursor != 0 {
		t.Errorf("expected cursor 0, got %d", app.cursor)
	}

	app.Update(runsLoadedMsg{runs: nil})
	if app.cursor != 0 {
		t.Errorf("cursor should reset when runs shrink, got %d", app.cursor)
	}
}

func TestRecheck(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "missing.yaml")
	var called string
	app := NewApp(RunOpts{Recheck: func(_ context.Context, path string) (cache.Run, error) {
		called = path
		return cache.Run{}, nil
	}})
	app.Update(runsLoadedMsg{runs: []cache.Run{{ID: "a", Bundle: bundle}}})

	_, cmd := app.Update(key("r"))
	if !app.rechecking {
		t.Fatal("r should start a recheck")
	}
	if cmd == nil {
		t.Fatal("expected recheck command")
	}

	msg := app.recheckCmd(bundle)()
	done := msg.(recheckDoneMsg)
	if done.err == nil {
		t.Error("expected error for a bundle that no longer exists")
	}
	if called != "" {
		t.Error("recheck should not run for a missing bundle")
	}

	app.Update(done)
	if app.rechecking || app.err == nil {
		t.Error("failed recheck should stop the spinner and surface the error")
	}
}

func TestViewRendersSelectedRun(t *testing.T) {
	app := NewApp(RunOpts{Bundles: []cache.BundleSummary{
		{Bundle: "/tmp/gpu.yaml", Runs: 1, Failed: 1},
		{Bundle: "/tmp/weekly.yaml", Runs: 1, LastPassed: true},
	}})
	app.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	app.Update(runsLoadedMsg{runs: testRuns()})
	app.Update(key("j"))

	view := app.View()
	for _, want := range []string{"sti history", "gpu.yaml", "FAILED", "[^7]", "Oct 21 – Oct 28, 2025"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestHelpMode(t *testing.T) {
	app := NewApp(RunOpts{})
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	app.Update(key("?"))
	if app.mode != modeHelp {
		t.Fatal("? should open help")
	}
	if !strings.Contains(app.View(), "Keyboard Shortcuts") {
		t.Error("help view should list shortcuts")
	}
	app.Update(key("q"))
	if app.mode != modeNormal {
		t.Error("q should close help, not quit")
	}
}

func TestFilterBar(t *testing.T) {
	f := newFilterBar([]cache.BundleSummary{
		{Bundle: "/a/weekly.yaml", Runs: 3, Failed: 0, LastPassed: true},
		{Bundle: "/a/gpu.yaml", Runs: 2, Failed: 1, LastPassed: true},
	})
	if f.activeBundles() != nil || f.activeLabel() != "All" {
		t.Fatal("new filter bar should show all bundles")
	}

	f.toggleCurrent()
	if got := f.activeBundles(); len(got) != 1 || got[0] != "/a/weekly.yaml" {
		t.Errorf("activeBundles = %v", got)
	}
	if got := f.activeLabel(); got != "weekly.yaml" {
		t.Errorf("activeLabel = %q", got)
	}

	f.toggle("/a/weekly.yaml")
	if f.activeBundles() != nil {
		t.Error("toggling twice should clear the filter")
	}
}

func TestFilterBarFailedRuns(t *testing.T) {
	f := newFilterBar([]cache.BundleSummary{
		{Bundle: "/a/weekly.yaml", Runs: 3, Failed: 0, LastPassed: true},
		{Bundle: "/a/gpu.yaml", Runs: 2, Failed: 2, LastPassed: false},
		{Bundle: "/a/chips.yaml", Runs: 4, Failed: 1, LastPassed: true},
	})

	if got := f.tabLabel("/a/weekly.yaml"); got != "weekly.yaml" {
		t.Errorf("tabLabel(weekly) = %q", got)
	}
	if got := f.tabLabel("/a/gpu.yaml"); !strings.Contains(got, "gpu.yaml") || !strings.Contains(got, "✗2") {
		t.Errorf("tabLabel(gpu) = %q", got)
	}
	if got := f.tabLabel("/a/chips.yaml"); got != "chips.yaml ✗1" {
		t.Errorf("tabLabel(chips) = %q", got)
	}
	if !strings.Contains(f.render(120), "✗2") {
		t.Error("rendered bar should show failed counts")
	}

	if !f.selectFailing() {
		t.Fatal("selectFailing should find gpu.yaml")
	}
	if got := f.activeBundles(); len(got) != 1 || got[0] != "/a/gpu.yaml" {
		t.Errorf("activeBundles after selectFailing = %v", got)
	}

	// A recheck that passes drops gpu.yaml from the failing set.
	f.setSummaries([]cache.BundleSummary{
		{Bundle: "/a/weekly.yaml", Runs: 3, LastPassed: true},
		{Bundle: "/a/gpu.yaml", Runs: 3, Failed: 2, LastPassed: true},
	})
	if f.selectFailing() {
		t.Error("no bundle is failing after the recheck")
	}
	if got := f.activeBundles(); len(got) != 1 || got[0] != "/a/gpu.yaml" {
		t.Errorf("selection should survive a refresh, got %v", got)
	}
}

func TestFilterFailingKey(t *testing.T) {
	db := testDB(t)
	bundles, err := db.BundleSummaries()
	if err != nil {
		t.Fatalf("BundleSummaries: %v", err)
	}
	app := NewApp(RunOpts{DB: db, Bundles: bundles})

	app.Update(key("f"))
	_, cmd := app.Update(key("!"))
	if cmd == nil {
		t.Fatal("! should reload runs when a bundle is failing")
	}
	loaded := cmd().(runsLoadedMsg)
	if len(loaded.runs) != 1 || loaded.runs[0].Bundle != "/tmp/gpu.yaml" {
		t.Errorf("expected only gpu.yaml runs, got %+v", loaded.runs)
	}
	if len(loaded.bundles) != 2 {
		t.Errorf("reload should refresh bundle summaries, got %+v", loaded.bundles)
	}
}
