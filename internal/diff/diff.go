// Package diff produces line-level change annotations between two texts.
//
// Two algorithms share one output contract. Greedy walks both texts with a
// bounded lookahead and is what the script review screen uses by default.
// Matcher runs a longest-matching-block alignment (go-difflib's
// SequenceMatcher) and produces tighter diffs for heavily reordered text.
// In both, every line of the original appears exactly once as same or
// removed, and every line of the candidate exactly once as same or added.
package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Kind classifies a diff line.
type Kind string

const (
	Same    Kind = "same"
	Added   Kind = "added"
	Removed Kind = "removed"
)

// Algorithm names accepted by Compute.
const (
	AlgorithmGreedy  = "greedy"
	AlgorithmMatcher = "matcher"
)

// Lookahead is how far past the current line the greedy walk searches for
// a resynchronization point.
const Lookahead = 4

// Line is one annotated line of output.
type Line struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Summary counts lines per kind.
type Summary struct {
	Same    int `json:"same"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// Result is an ordered diff with its summary.
type Result struct {
	Algorithm string  `json:"algorithm"`
	Lines     []Line  `json:"lines"`
	Summary   Summary `json:"summary"`
}

// Changed reports whether the two inputs differ.
func (r Result) Changed() bool {
	return r.Summary.Added > 0 || r.Summary.Removed > 0
}

// ValidateAlgorithm returns an error for names Compute does not know.
// The empty string selects the default.
func ValidateAlgorithm(name string) error {
	switch name {
	case "", AlgorithmGreedy, AlgorithmMatcher:
		return nil
	default:
		return fmt.Errorf("algorithm %q must be %q or %q", name, AlgorithmGreedy, AlgorithmMatcher)
	}
}

// Compute runs the named algorithm. Unknown names fall back to greedy;
// callers that need to reject them use ValidateAlgorithm first.
func Compute(algorithm, original, candidate string) Result {
	if algorithm == AlgorithmMatcher {
		return Matched(original, candidate)
	}
	return Lines(original, candidate)
}

// SplitLines splits text on "\n" after normalizing "\r\n". Empty text has
// no lines; a trailing newline yields a final empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Lines diffs original against candidate with the greedy lookahead walk.
//
// When the current lines differ, the walk looks up to Lookahead lines ahead
// on each side. If the original line shows up soon in the candidate (no
// later than the candidate line shows up in the original), the candidate
// line is an insertion. Otherwise, if the candidate line shows up soon in
// the original, the original line is a deletion. Otherwise the pair is
// treated as a modification: removed then added.
func Lines(original, candidate string) Result {
	a, b := SplitLines(original), SplitLines(candidate)
	var out builder
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i >= len(a):
			out.add(Added, b[j])
			j++
		case j >= len(b):
			out.add(Removed, a[i])
			i++
		case a[i] == b[j]:
			out.add(Same, a[i])
			i++
			j++
		default:
			ahead := seek(b, j, a[i])
			behind := seek(a, i, b[j])
			switch {
			case ahead > 0 && (behind == 0 || ahead <= behind):
				out.add(Added, b[j])
				j++
			case behind > 0:
				out.add(Removed, a[i])
				i++
			default:
				out.add(Removed, a[i])
				out.add(Added, b[j])
				i++
				j++
			}
		}
	}
	return out.result(AlgorithmGreedy)
}

// seek returns the smallest k in 1..Lookahead with lines[from+k] == want,
// or 0 when there is none.
func seek(lines []string, from int, want string) int {
	for k := 1; k <= Lookahead && from+k < len(lines); k++ {
		if lines[from+k] == want {
			return k
		}
	}
	return 0
}

// Matched diffs original against candidate using matching-block alignment.
// Replaced ranges are reported as all removals followed by all additions.
func Matched(original, candidate string) Result {
	a, b := SplitLines(original), SplitLines(candidate)
	var out builder
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, l := range a[op.I1:op.I2] {
				out.add(Same, l)
			}
		case 'd':
			for _, l := range a[op.I1:op.I2] {
				out.add(Removed, l)
			}
		case 'i':
			for _, l := range b[op.J1:op.J2] {
				out.add(Added, l)
			}
		case 'r':
			for _, l := range a[op.I1:op.I2] {
				out.add(Removed, l)
			}
			for _, l := range b[op.J1:op.J2] {
				out.add(Added, l)
			}
		}
	}
	return out.result(AlgorithmMatcher)
}

// Unified renders a result as text with " ", "+" and "-" line prefixes.
func Unified(r Result) string {
	var sb strings.Builder
	for _, l := range r.Lines {
		switch l.Kind {
		case Added:
			sb.WriteByte('+')
		case Removed:
			sb.WriteByte('-')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}

type builder struct {
	lines   []Line
	summary Summary
}

func (b *builder) add(k Kind, text string) {
	b.lines = append(b.lines, Line{Kind: k, Text: text})
	switch k {
	case Same:
		b.summary.Same++
	case Added:
		b.summary.Added++
	case Removed:
		b.summary.Removed++
	}
}

func (b *builder) result(algorithm string) Result {
	lines := b.lines
	if lines == nil {
		lines = []Line{}
	}
	return Result{Algorithm: algorithm, Lines: lines, Summary: b.summary}
}
