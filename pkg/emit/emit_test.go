package emit

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/raymyers/cypp/pkg/merge"
	"github.com/raymyers/cypp/pkg/tags"
)

func cond(name string, value bool) tags.Cond {
	return tags.Cond{Name: name, Value: value}
}

func tagged(text string, conds ...tags.Cond) merge.Line {
	if len(conds) == 0 {
		return merge.Line{Text: text}
	}
	return merge.Line{Text: text, Tags: tags.List{tags.New(conds...)}}
}

func TestProduceUnconditional(t *testing.T) {
	lines := []merge.Line{
		tagged("a\n"),
		tagged("b\n"),
	}
	got := Produce(lines)
	want := []string{"a\n", "b\n"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Produce mismatch (-want +got):\n%s", diff)
	}
}

func TestProduceSingleBlock(t *testing.T) {
	f := cond("defined(F)", true)
	lines := []merge.Line{
		tagged("before\n"),
		tagged("inside\n", f),
		tagged("also inside\n", f),
		tagged("after\n"),
	}
	got := strings.Join(Produce(lines), "")
	want := "before\n" +
		"#if defined(F)\n" +
		"inside\n" +
		"also inside\n" +
		"#endif /* defined(F) */\n" +
		"after\n"
	if got != want {
		t.Errorf("Produce = %q, want %q", got, want)
	}
}

func TestProduceElseCollapse(t *testing.T) {
	f := cond("defined(F)", true)
	lines := []merge.Line{
		tagged("outA\n", f),
		tagged("outB\n", f.Not()),
	}
	got := strings.Join(Produce(lines), "")
	want := "#if defined(F)\n" +
		"outA\n" +
		"#else /* defined(F) */\n" +
		"outB\n" +
		"#endif /* !defined(F) */\n"
	if got != want {
		t.Errorf("Produce = %q, want %q", got, want)
	}
	if strings.Contains(got, "#endif /* defined(F) */\n#if") {
		t.Error("complement transition must collapse to #else")
	}
}

func TestProduceAlternatingBlocks(t *testing.T) {
	f := cond("C", true)
	lines := []merge.Line{
		tagged("a1\n", f),
		tagged("b1\n", f.Not()),
		tagged("a2\n", f),
		tagged("b2\n", f.Not()),
	}
	got := strings.Join(Produce(lines), "")
	if strings.Contains(got, "#endif") && strings.Index(got, "#endif") < strings.LastIndex(got, "b2") {
		// Only the final #endif may appear, after the last line.
		if strings.Count(got, "#endif") != 1 {
			t.Errorf("alternating complements must use #else, got:\n%s", got)
		}
	}
	if strings.Count(got, "#else") != 3 {
		t.Errorf("want 3 #else transitions, got:\n%s", got)
	}
}

func TestProduceDistinctConditions(t *testing.T) {
	lines := []merge.Line{
		tagged("x\n", cond("A", true)),
		tagged("y\n", cond("B", true)),
	}
	got := strings.Join(Produce(lines), "")
	want := "#if A\n" +
		"x\n" +
		"#endif /* A */\n" +
		"#if B\n" +
		"y\n" +
		"#endif /* B */\n"
	if got != want {
		t.Errorf("Produce = %q, want %q", got, want)
	}
}

func TestProduceMultiTagFormatting(t *testing.T) {
	l := merge.Line{Text: "x\n", Tags: tags.List{
		tags.New(cond("A", true), cond("B", true)),
		tags.New(cond("C", false)),
	}}
	got := strings.Join(Produce([]merge.Line{l}), "")
	want := "#if (A && B) || (!C)\n" +
		"x\n" +
		"#endif /* (A && B) || (!C) */\n"
	if got != want {
		t.Errorf("Produce = %q, want %q", got, want)
	}
}

func TestProduceClosesOpenBlockAtEnd(t *testing.T) {
	lines := []merge.Line{tagged("x\n", cond("A", true))}
	got := Produce(lines)
	if got[len(got)-1] != "#endif /* A */\n" {
		t.Errorf("final line = %q, want closing #endif", got[len(got)-1])
	}
}

func TestProduceEmpty(t *testing.T) {
	if got := Produce(nil); len(got) != 0 {
		t.Errorf("Produce(nil) = %v, want empty", got)
	}
}
