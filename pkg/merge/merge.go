// Package merge folds the compiled variant outputs into a single tagged
// line sequence. Variants are combined pairwise with a
// longest-matching-block alignment: lines equal in both variants carry the
// union of their tags, differing spans pass through with their own tags.
// The alignment is a heuristic; different fold orders can group differing
// spans differently, but the simplified tags always denote the same
// configurations.
package merge

import (
	"sort"
	"strings"

	"github.com/raymyers/cypp/pkg/tags"
)

// Line is one merged output line together with the disjunction of
// configurations under which it appears. An empty Tags means the line is
// unconditional.
type Line struct {
	Text string
	Tags tags.List
}

// Attach splits compiled text into lines, each tagged with the
// configuration it was compiled under.
func Attach(text string, tag tags.Tag) []Line {
	parts := strings.Split(text, "\n")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]Line, len(parts))
	for i, p := range parts {
		out[i] = Line{Text: p + "\n", Tags: tags.List{tag}}
	}
	return out
}

// Merge folds the variant line sequences left to right into one sequence
// and simplifies every line's tag list.
func Merge(sources [][]Line) []Line {
	if len(sources) == 0 {
		return nil
	}
	merged := sources[0]
	for _, next := range sources[1:] {
		merged = mergePair(merged, next)
	}
	out := make([]Line, len(merged))
	for i, l := range merged {
		out[i] = Line{Text: l.Text, Tags: tags.Simplify(l.Tags)}
	}
	return out
}

// mergePair aligns two line sequences. Matching spans produce one line
// whose tags are the concatenation of both sides'; non-matching spans are
// passed through from both sides in order.
func mergePair(a, b []Line) []Line {
	var out []Line
	for _, op := range opcodes(a, b) {
		if op.equal {
			for k := 0; k < op.i2-op.i1; k++ {
				la, lb := a[op.i1+k], b[op.j1+k]
				merged := append(append(tags.List{}, la.Tags...), lb.Tags...)
				out = append(out, Line{Text: la.Text, Tags: merged})
			}
			continue
		}
		out = append(out, a[op.i1:op.i2]...)
		out = append(out, b[op.j1:op.j2]...)
	}
	return out
}

// opcode describes one aligned span: a[i1:i2] against b[j1:j2].
type opcode struct {
	equal  bool
	i1, i2 int
	j1, j2 int
}

type match struct {
	i, j, size int
}

// opcodes computes the aligned spans between a and b from their matching
// blocks.
func opcodes(a, b []Line) []opcode {
	var out []opcode
	i, j := 0, 0
	for _, m := range matchingBlocks(a, b) {
		if i < m.i || j < m.j {
			out = append(out, opcode{i1: i, i2: m.i, j1: j, j2: m.j})
		}
		if m.size > 0 {
			out = append(out, opcode{equal: true, i1: m.i, i2: m.i + m.size, j1: m.j, j2: m.j + m.size})
		}
		i, j = m.i+m.size, m.j+m.size
	}
	return out
}

// matchingBlocks finds non-overlapping matching blocks by recursively
// taking the longest match in each remaining region, ending with a
// zero-length sentinel block.
func matchingBlocks(a, b []Line) []match {
	// Map each line text to its positions in b.
	b2j := make(map[string][]int, len(b))
	for j, l := range b {
		b2j[l.Text] = append(b2j[l.Text], j)
	}

	type region struct{ alo, ahi, blo, bhi int }
	queue := []region{{0, len(a), 0, len(b)}}
	var found []match
	for len(queue) > 0 {
		r := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		m := longestMatch(a, b2j, r.alo, r.ahi, r.blo, r.bhi)
		if m.size == 0 {
			continue
		}
		found = append(found, m)
		queue = append(queue,
			region{r.alo, m.i, r.blo, m.j},
			region{m.i + m.size, r.ahi, m.j + m.size, r.bhi})
	}

	sort.Slice(found, func(x, y int) bool { return found[x].i < found[y].i })
	found = append(found, match{i: len(a), j: len(b), size: 0})
	return found
}

// longestMatch finds the longest block of equal lines within
// a[alo:ahi] x b[blo:bhi], earliest in a (then b) on ties.
func longestMatch(a []Line, b2j map[string][]int, alo, ahi, blo, bhi int) match {
	best := match{i: alo, j: blo, size: 0}
	// j2len[j] is the length of the longest match ending at a[i-1], b[j-1].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i].Text] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > best.size {
				best = match{i: i - k + 1, j: j - k + 1, size: k}
			}
		}
		j2len = newj2len
	}
	return best
}
