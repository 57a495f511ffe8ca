package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/HassDhia/deep-agent-sti/internal/cache"
)

func TestTruncateStr(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"test", 0, ""},
	}
	for _, tt := range tests {
		got := truncateStr(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncateStr(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestTruncateStrUTF8(t *testing.T) {
	got := truncateStr("日本語テスト", 5)
	want := "日本..."
	if got != want {
		t.Errorf("truncateStr(Japanese, 5) = %q, want %q", got, want)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-2 * 24 * time.Hour), "2d"},
	}
	for _, tt := range tests {
		got := relativeTime(tt.t)
		if got != tt.want {
			t.Errorf("relativeTime(%v ago) = %q, want %q", now.Sub(tt.t), got, tt.want)
		}
	}
}

func TestRelativeTimeOld(t *testing.T) {
	old := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	got := relativeTime(old)
	if got != "Jun 15" {
		t.Errorf("relativeTime(old date) = %q, want %q", got, "Jun 15")
	}
}

func TestRunLabel(t *testing.T) {
	if got := runLabel(cache.Run{Title: "Weekly", Bundle: "/x/w.yaml"}); got != "Weekly" {
		t.Errorf("runLabel with title = %q", got)
	}
	if got := runLabel(cache.Run{Bundle: "/x/w.yaml"}); got != "w.yaml" {
		t.Errorf("runLabel without title = %q", got)
	}
}

func TestRenderListEmpty(t *testing.T) {
	if got := renderList(nil, 0, 9, 40); !strings.Contains(got, "No runs recorded") {
		t.Errorf("empty list = %q", got)
	}
}

func TestRenderListScrolls(t *testing.T) {
	runs := make([]cache.Run, 10)
	for i := range runs {
		runs[i] = cache.Run{Title: string(rune('A' + i)), Band: "Low", Passed: true, CheckedAt: time.Now()}
	}
	// height 6 shows two items; cursor on the last run
	got := renderList(runs, 9, 6, 40)
	if !strings.Contains(got, "J") || strings.Contains(got, " A") {
		t.Errorf("list should scroll to the cursor:\n%s", got)
	}
}

func TestMarkers(t *testing.T) {
	if got := markers([]int{3, 5}); got != "[^3] [^5]" {
		t.Errorf("markers = %q", got)
	}
}
