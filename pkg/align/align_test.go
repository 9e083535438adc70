package align

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raymyers/cypp/pkg/preprocess"
)

func lines(pairs ...any) []preprocess.Line {
	var out []preprocess.Line
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, preprocess.Line{
			Text:       pairs[i].(string),
			SourceLine: pairs[i+1].(int),
		})
	}
	return out
}

func TestExpandEqualStreams(t *testing.T) {
	streams := map[string][]preprocess.Line{
		"a": lines("x\n", 1, "y\n", 2),
		"b": lines("x\n", 1, "y\n", 2),
	}
	got := Expand(streams)

	want := map[string][]string{
		"a": {"x\n", "y\n"},
		"b": {"x\n", "y\n"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandPadsMissingLines(t *testing.T) {
	// Stream "b" skipped source line 2, so it gets a filler there.
	streams := map[string][]preprocess.Line{
		"a": lines("x\n", 1, "only-a\n", 2, "z\n", 3),
		"b": lines("x\n", 1, "z\n", 3),
	}
	got := Expand(streams)

	want := map[string][]string{
		"a": {"x\n", "only-a\n", "z\n"},
		"b": {"x\n", "\n", "z\n"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandEqualLengths(t *testing.T) {
	streams := map[string][]preprocess.Line{
		"a": lines("1\n", 1, "2\n", 2, "3\n", 3, "4\n", 4),
		"b": lines("2\n", 2),
		"c": lines("4\n", 4, "also4\n", 4),
	}
	got := Expand(streams)

	length := -1
	for key, stream := range got {
		if length == -1 {
			length = len(stream)
		}
		if len(stream) != length {
			t.Errorf("stream %q has length %d, want %d", key, len(stream), length)
		}
	}
}

func TestExpandMultipleLinesSameSource(t *testing.T) {
	// A macro expansion can emit several lines for one source line; all of
	// them stay ahead of later source lines in every stream.
	streams := map[string][]preprocess.Line{
		"a": lines("m1\n", 1, "m2\n", 1, "end\n", 2),
		"b": lines("n\n", 1, "end\n", 2),
	}
	got := Expand(streams)

	// Both streams end with "end" at the same index.
	last := len(got["a"]) - 1
	if got["a"][last] != "end\n" || got["b"][last] != "end\n" {
		t.Errorf("streams not aligned on final line: a=%v b=%v", got["a"], got["b"])
	}
}

func TestExpandEmpty(t *testing.T) {
	got := Expand(map[string][]preprocess.Line{})
	if len(got) != 0 {
		t.Errorf("Expand(empty) = %v, want empty", got)
	}
}
