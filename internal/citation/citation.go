package citation

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var ErrDangling = errors.New("dangling citation")

// CitationError lists citation markers that point at no source. Invalid
// holds markers whose number does not fit a source id, verbatim.
type CitationError struct {
	IDs     []int
	Invalid []string
}

func (e *CitationError) Error() string {
	parts := make([]string, 0, len(e.IDs)+len(e.Invalid))
	for _, id := range e.IDs {
		parts = append(parts, fmt.Sprintf("[^%d]", id))
	}
	parts = append(parts, e.Invalid...)
	return fmt.Sprintf("%s: %s reference no source", ErrDangling, strings.Join(parts, ", "))
}

func (e *CitationError) Unwrap() error { return ErrDangling }

// markerRe matches [^n] and the type-tagged form [^n:P].
var markerRe = regexp.MustCompile(`\[\^(\d+)(?::[A-Za-z]+)?\]`)

// definitionRe matches a footnote definition at the start of a line, e.g.
// "[^3]: Title — Publisher". Definitions are the source list itself, not
// references to it.
var definitionRe = regexp.MustCompile(`(?m)^[ \t]*\[\^\d+(?::[A-Za-z]+)?\]:`)

// Extract returns the distinct source ids cited in text, ascending.
// Markers whose number overflows an int are left out; Validate reports them.
func Extract(text string) []int {
	ids, _ := extract(text)
	return ids
}

func extract(text string) ([]int, []string) {
	text = definitionRe.ReplaceAllString(text, "")
	seen := map[int]bool{}
	var invalid []string
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			if !slices.Contains(invalid, m[0]) {
				invalid = append(invalid, m[0])
			}
			continue
		}
		seen[n] = true
	}
	return sortedKeys(seen), invalid
}

// Report is the coverage relation between a source list and rendered text.
type Report struct {
	Cited    []int // ids referenced at least once
	Dangling []int // referenced ids with no source
	Uncited  []int // source ids never referenced
	// Invalid holds markers, verbatim and in text order, whose number is
	// too large to be any source id. They dangle like Dangling ids.
	Invalid []string
}

// Validate cross-references source ids against the citation markers in
// text. It only reports; pruning and renumbering are up to the caller, which
// must validate again afterwards.
func Validate(sourceIDs []int, text string) Report {
	known := make(map[int]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		known[id] = true
	}

	cited, invalid := extract(text)
	referenced := make(map[int]bool, len(cited))

	r := Report{Cited: cited, Dangling: []int{}, Uncited: []int{}, Invalid: []string{}}
	r.Invalid = append(r.Invalid, invalid...)
	for _, id := range cited {
		referenced[id] = true
		if !known[id] {
			r.Dangling = append(r.Dangling, id)
		}
	}
	for _, id := range sortedKeys(known) {
		if !referenced[id] {
			r.Uncited = append(r.Uncited, id)
		}
	}
	return r
}

// OK reports whether every citation resolves.
func (r Report) OK() bool { return len(r.Dangling) == 0 && len(r.Invalid) == 0 }

// Err returns a *CitationError when any citation dangles.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return &CitationError{IDs: slices.Clone(r.Dangling), Invalid: slices.Clone(r.Invalid)}
}

// Warnings describes uncited sources as pruning candidates.
func (r Report) Warnings() []string {
	var out []string
	for _, id := range r.Uncited {
		out = append(out, fmt.Sprintf("source [^%d] is never cited: drop from source list", id))
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
