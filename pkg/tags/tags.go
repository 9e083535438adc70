// Package tags models the conditions under which a merged output line is
// present: a Cond is one polarity-assigned condition, a Tag is an AND-set of
// Conds, and a List is an OR of Tags. It also implements the boolean-cover
// simplification used before directive re-emission.
package tags

import (
	"sort"
	"strings"
)

// Cond is a single condition test and its truth value, e.g.
// {Name: "defined(FOO)", Value: true}. Two Conds are the same axis
// iff their names match.
type Cond struct {
	Name  string
	Value bool
}

// Not returns the polarity complement of c.
func (c Cond) Not() Cond {
	return Cond{Name: c.Name, Value: !c.Value}
}

// String formats the condition the way it appears in an emitted #if line.
func (c Cond) String() string {
	if c.Value {
		return c.Name
	}
	return "!" + c.Name
}

// Tag is a conjunction of conditions that must all hold for a line to
// appear. The slice is kept sorted and free of duplicates; use New to
// build one. An empty Tag means "always".
type Tag []Cond

// New builds a canonical Tag from the given conditions.
func New(conds ...Cond) Tag {
	t := make(Tag, 0, len(conds))
	seen := make(map[Cond]bool, len(conds))
	for _, c := range conds {
		if !seen[c] {
			seen[c] = true
			t = append(t, c)
		}
	}
	t.sort()
	return t
}

func (t Tag) sort() {
	sort.Slice(t, func(i, j int) bool {
		if t[i].Name != t[j].Name {
			return t[i].Name < t[j].Name
		}
		return !t[i].Value && t[j].Value
	})
}

// Contains reports whether t includes the exact condition c.
func (t Tag) Contains(c Cond) bool {
	for _, x := range t {
		if x == c {
			return true
		}
	}
	return false
}

// Equal reports whether two canonical Tags denote the same conjunction.
func (t Tag) Equal(o Tag) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// Without returns a copy of t with the condition c removed.
func (t Tag) Without(c Cond) Tag {
	out := make(Tag, 0, len(t))
	for _, x := range t {
		if x != c {
			out = append(out, x)
		}
	}
	return out
}

// Consistent reports whether t assigns at most one polarity per name.
func (t Tag) Consistent() bool {
	polarity := make(map[string]bool, len(t))
	for _, c := range t {
		if v, ok := polarity[c.Name]; ok && v != c.Value {
			return false
		}
		polarity[c.Name] = c.Value
	}
	return true
}

// String formats the Tag with its conditions AND-joined.
func (t Tag) String() string {
	parts := make([]string, len(t))
	for i, c := range t {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}

// List is a disjunction of Tags: a line appears whenever any of its Tags
// holds. An empty (or nil) List means the line is unconditional.
type List []Tag

// Equal reports whether two Lists are identical tag-for-tag. Order is
// significant: equality is representational, used only to detect block
// boundaries during emission.
func (l List) Equal(o List) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// String formats the List with its Tags OR-joined. A single Tag is
// emitted bare; multiple Tags are parenthesized.
func (l List) String() string {
	if len(l) == 1 {
		return l[0].String()
	}
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = "(" + t.String() + ")"
	}
	return strings.Join(parts, " || ")
}

// Simplify reduces a List to a minimal disjunctive cover equivalent to the
// input. It applies three rules to a fixpoint: empty Tags are dropped,
// duplicate Tags are collapsed, and two Tags identical except for one
// complemented condition absorb into their common part
// ((X && Y) || (X && !Y) == X). The result is a new List; the input is
// not modified.
func Simplify(l List) List {
	work := make(List, len(l))
	copy(work, l)
	for {
		if changed, next := simplifyStep(work); changed {
			work = next
			continue
		}
		return work
	}
}

func simplifyStep(l List) (bool, List) {
	for i, t := range l {
		if len(t) == 0 {
			return true, remove(l, i)
		}
	}
	for i := 0; i < len(l); i++ {
		for j := i + 1; j < len(l); j++ {
			if l[i].Equal(l[j]) {
				return true, remove(l, i)
			}
			for _, c := range l[i] {
				if !l[j].Contains(c.Not()) {
					continue
				}
				common := l[i].Without(c)
				if common.Equal(l[j].Without(c.Not())) {
					next := remove(remove(l, j), i)
					return true, append(next, common)
				}
			}
		}
	}
	return false, l
}

func remove(l List, i int) List {
	out := make(List, 0, len(l)-1)
	out = append(out, l[:i]...)
	return append(out, l[i+1:]...)
}

// ExactReverse reports whether two Lists are single-condition polarity
// complements of each other; such a transition is emitted as #else rather
// than #endif followed by #if.
func ExactReverse(a, b List) bool {
	if len(a) != 1 || len(b) != 1 {
		return false
	}
	if len(a[0]) != 1 || len(b[0]) != 1 {
		return false
	}
	ca, cb := a[0][0], b[0][0]
	return ca.Name == cb.Name && ca.Value != cb.Value
}
