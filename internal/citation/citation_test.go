package citation

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDanglingAndUncited(t *testing.T) {
	text := "Orders rose [^1]. Margins held [^2]. A rumor surfaced [^5]."
	r := Validate([]int{1, 2, 3}, text)

	if diff := cmp.Diff([]int{5}, r.Dangling); diff != "" {
		t.Errorf("dangling mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3}, r.Uncited); diff != "" {
		t.Errorf("uncited mismatch (-want +got):\n%s", diff)
	}
	if r.OK() {
		t.Error("report with a dangling citation should not be OK")
	}
}

func TestAllResolved(t *testing.T) {
	text := "First [^1], second [^2][^3], repeated [^1]."
	r := Validate([]int{1, 2, 3}, text)
	if len(r.Dangling) != 0 {
		t.Errorf("expected no dangling citations, got %v", r.Dangling)
	}
	if len(r.Uncited) != 0 {
		t.Errorf("expected no uncited sources, got %v", r.Uncited)
	}
	if err := r.Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestSingleUnknownMarker(t *testing.T) {
	for _, k := range []int{4, 17, 100} {
		text := "Claim [^1] and [^2]. Extra [^" + strconv.Itoa(k) + "]."
		r := Validate([]int{1, 2, 3}, text)
		if diff := cmp.Diff([]int{k}, r.Dangling); diff != "" {
			t.Errorf("k=%d dangling mismatch (-want +got):\n%s", k, diff)
		}
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	text := "[^3] then [^1] then [^9] then [^3]"
	ids := []int{3, 1, 2}
	first := Validate(ids, text)
	second := Validate(ids, text)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("validate not deterministic (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3, 9}, first.Cited); diff != "" {
		t.Errorf("cited should be sorted (-want +got):\n%s", diff)
	}
}

func TestTypedMarkers(t *testing.T) {
	text := "Evidence [^2:P][^3:A] and plain [^1]."
	got := Extract(text)
	if diff := cmp.Diff([]int{1, 2, 3}, got); diff != "" {
		t.Errorf("extract mismatch (-want +got):\n%s", diff)
	}
}

func TestDefinitionsAreNotReferences(t *testing.T) {
	text := strings.Join([]string{
		"## Topline",
		"Demand rose [^1].",
		"",
		"## Sources",
		"[^1]: Chip demand — Reuters, 2025-10-22. https://reuters.com/a",
		"[^2]: Vendor launch — OpenAI, 2025-10-23. https://openai.com/blog/b",
	}, "\n")

	r := Validate([]int{1, 2}, text)
	if diff := cmp.Diff([]int{2}, r.Uncited); diff != "" {
		t.Errorf("uncited mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyInputs(t *testing.T) {
	r := Validate(nil, "")
	if len(r.Cited) != 0 || len(r.Dangling) != 0 || len(r.Uncited) != 0 {
		t.Errorf("expected empty report, got %+v", r)
	}

	r = Validate([]int{1, 2}, "no citations at all")
	if diff := cmp.Diff([]int{1, 2}, r.Uncited); diff != "" {
		t.Errorf("uncited mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedMarkersIgnored(t *testing.T) {
	got := Extract("[^] [^x] [1] ^2 [^ 3] [^4")
	if len(got) != 0 {
		t.Errorf("expected no ids from malformed markers, got %v", got)
	}
}

func TestCitationErrorMessage(t *testing.T) {
	r := Validate([]int{1}, "[^1] [^7] [^8]")
	err := r.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrDangling) {
		t.Error("expected error to unwrap to ErrDangling")
	}
	var ce *CitationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CitationError, got %T", err)
	}
	if !strings.Contains(err.Error(), "[^7], [^8]") {
		t.Errorf("error should list offending ids verbatim, got %q", err.Error())
	}
}

func TestWarnings(t *testing.T) {
	r := Validate([]int{1, 2, 3}, "[^2]")
	w := r.Warnings()
	if len(w) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(w))
	}
	if !strings.Contains(w[0], "[^1]") || !strings.Contains(w[0], "drop from source list") {
		t.Errorf("unexpected warning %q", w[0])
	}
}

func TestOversizedMarkerDangles(t *testing.T) {
	text := "Claim [^1]. Typo [^99999999999999999999]. Again [^99999999999999999999:P]."
	r := Validate([]int{1}, text)

	if r.OK() {
		t.Fatal("a marker too large for any source id must not resolve")
	}
	want := []string{"[^99999999999999999999]", "[^99999999999999999999:P]"}
	if diff := cmp.Diff(want, r.Invalid); diff != "" {
		t.Errorf("invalid mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, r.Cited); diff != "" {
		t.Errorf("cited mismatch (-want +got):\n%s", diff)
	}

	err := r.Err()
	if !errors.Is(err, ErrDangling) {
		t.Fatalf("expected ErrDangling, got %v", err)
	}
	if !strings.Contains(err.Error(), "[^99999999999999999999]") {
		t.Errorf("error should show the marker verbatim, got %q", err.Error())
	}
}
