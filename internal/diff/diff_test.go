package diff

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(kv ...string) []Line {
	out := make([]Line, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		out = append(out, Line{Kind: Kind(kv[i]), Text: kv[i+1]})
	}
	return out
}

func TestLinesModification(t *testing.T) {
	r := Lines("a\nb\nc", "a\nx\nc")
	assert.Equal(t, lines("same", "a", "removed", "b", "added", "x", "same", "c"), r.Lines)
	assert.Equal(t, Summary{Same: 2, Added: 1, Removed: 1}, r.Summary)
	assert.Equal(t, AlgorithmGreedy, r.Algorithm)
	assert.True(t, r.Changed())
}

func TestLinesInsertion(t *testing.T) {
	r := Lines("a\nb\nc", "a\nx\ny\nb\nc")
	assert.Equal(t, lines("same", "a", "added", "x", "added", "y", "same", "b", "same", "c"), r.Lines)
}

func TestLinesDeletion(t *testing.T) {
	r := Lines("a\nb\nd\nc", "a\nc")
	assert.Equal(t, lines("same", "a", "removed", "b", "removed", "d", "same", "c"), r.Lines)
}

func TestLinesPrefersCloserMatch(t *testing.T) {
	// "p" reappears 2 lines ahead in the candidate; "q" reappears 1 line
	// ahead in the original, so the original line is the deletion.
	r := Lines("p\nq\nz", "q\nw\np")
	require.NotEmpty(t, r.Lines)
	assert.Equal(t, Line{Kind: Removed, Text: "p"}, r.Lines[0])
	assert.Equal(t, Line{Kind: Same, Text: "q"}, r.Lines[1])
}

func TestLinesTieFavorsInsertion(t *testing.T) {
	r := Lines("p\nq", "q\np")
	assert.Equal(t, Line{Kind: Added, Text: "q"}, r.Lines[0])
	assertTotal(t, "p\nq", "q\np", r)
}

func TestLinesBeyondLookahead(t *testing.T) {
	// The original line is 5 ahead in the candidate, past the lookahead.
	r := Lines("a\nz", "b1\nb2\nb3\nb4\nb5\na\nz")
	assert.Equal(t, Line{Kind: Removed, Text: "a"}, r.Lines[0])
	assert.Equal(t, Line{Kind: Added, Text: "b1"}, r.Lines[1])
	assertTotal(t, "a\nz", "b1\nb2\nb3\nb4\nb5\na\nz", r)
}

func TestLinesEmptyInputs(t *testing.T) {
	r := Lines("", "")
	assert.Empty(t, r.Lines)
	assert.NotNil(t, r.Lines)
	assert.False(t, r.Changed())

	r = Lines("", "a\nb")
	assert.Equal(t, lines("added", "a", "added", "b"), r.Lines)

	r = Lines("a\nb", "")
	assert.Equal(t, lines("removed", "a", "removed", "b"), r.Lines)
}

func TestLinesNormalizesCRLF(t *testing.T) {
	r := Lines("a\r\nb", "a\nb")
	assert.False(t, r.Changed())
}

func TestIdentity(t *testing.T) {
	texts := []string{"one", "one\ntwo\nthree", "dup\ndup\ndup", "trailing\n", "\n\n"}
	for _, text := range texts {
		for _, r := range []Result{Lines(text, text), Matched(text, text)} {
			require.Len(t, r.Lines, len(SplitLines(text)), text)
			for _, l := range r.Lines {
				assert.Equal(t, Same, l.Kind)
			}
		}
	}
}

func TestTotalityRandomized(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	vocab := []string{"a", "b", "c", "d", "e", ""}
	gen := func() string {
		n := rng.IntN(12)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = vocab[rng.IntN(len(vocab))]
		}
		return strings.Join(parts, "\n")
	}
	for range 500 {
		a, b := gen(), gen()
		assertTotal(t, a, b, Lines(a, b))
		assertTotal(t, a, b, Matched(a, b))
	}
}

// assertTotal checks that same+removed lines rebuild the original and
// same+added lines rebuild the candidate, in order.
func assertTotal(t *testing.T, original, candidate string, r Result) {
	t.Helper()
	var left, right []string
	for _, l := range r.Lines {
		switch l.Kind {
		case Same:
			left = append(left, l.Text)
			right = append(right, l.Text)
		case Removed:
			left = append(left, l.Text)
		case Added:
			right = append(right, l.Text)
		default:
			t.Fatalf("unexpected kind %q", l.Kind)
		}
	}
	assert.Equal(t, SplitLines(original), left, "original %q candidate %q", original, candidate)
	assert.Equal(t, SplitLines(candidate), right, "original %q candidate %q", original, candidate)
	assert.Equal(t, len(r.Lines), r.Summary.Same+r.Summary.Added+r.Summary.Removed)
}

func TestMatchedModification(t *testing.T) {
	r := Matched("a\nb\nc", "a\nx\nc")
	assert.Equal(t, lines("same", "a", "removed", "b", "added", "x", "same", "c"), r.Lines)
	assert.Equal(t, AlgorithmMatcher, r.Algorithm)
}

func TestCompute(t *testing.T) {
	assert.Equal(t, AlgorithmGreedy, Compute("", "a", "b").Algorithm)
	assert.Equal(t, AlgorithmGreedy, Compute("bogus", "a", "b").Algorithm)
	assert.Equal(t, AlgorithmMatcher, Compute(AlgorithmMatcher, "a", "b").Algorithm)
}

func TestValidateAlgorithm(t *testing.T) {
	assert.NoError(t, ValidateAlgorithm(""))
	assert.NoError(t, ValidateAlgorithm(AlgorithmGreedy))
	assert.NoError(t, ValidateAlgorithm(AlgorithmMatcher))
	assert.Error(t, ValidateAlgorithm("myers"))
}

func TestUnified(t *testing.T) {
	got := Unified(Lines("a\nb\nc", "a\nx\nc"))
	assert.Equal(t, " a\n-b\n+x\n c\n", got)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a"}, SplitLines("a"))
	assert.Equal(t, []string{"a", ""}, SplitLines("a\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb"))
}
