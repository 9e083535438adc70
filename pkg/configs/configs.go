// Package configs discovers the conditional-compilation space of a source
// file. Conditions walks the directive structure and records every distinct
// condition stack reachable by control flow; Enumerate derives the complete
// list of internally-consistent, fully-assigned configurations from those
// stacks. Each configuration drives one preprocessing pass.
package configs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/raymyers/cypp/pkg/directive"
	"github.com/raymyers/cypp/pkg/tags"
)

// Config is a complete truth assignment over every condition name observed
// in a source file. Names a candidate never mentioned default to false.
type Config struct {
	conds map[string]bool
}

// IgnoreAll returns the empty assignment, which resolves every condition
// to false. Used to preprocess a file with only its definitions expanded.
func IgnoreAll() *Config {
	return &Config{conds: map[string]bool{}}
}

// New builds a Config from a Tag. A nil or empty Tag yields the
// all-false assignment.
func New(t tags.Tag) *Config {
	c := &Config{conds: make(map[string]bool, len(t))}
	for _, cond := range t {
		c.conds[cond.Name] = cond.Value
	}
	return c
}

// IsTrue resolves a #if or #ifdef directive against the configuration.
// Unknown names are false.
func (c *Config) IsTrue(d *directive.Directive) bool {
	return c.conds[d.Cond().Name]
}

// Tag returns the configuration as a canonical Tag.
func (c *Config) Tag() tags.Tag {
	conds := make([]tags.Cond, 0, len(c.conds))
	for name, value := range c.conds {
		conds = append(conds, tags.Cond{Name: name, Value: value})
	}
	return tags.New(conds...)
}

// Key returns a deterministic identity string, used for sorting and as a
// map key across the per-configuration pipeline.
func (c *Config) Key() string {
	return c.Tag().String()
}

// Conditions scans raw source and returns every distinct condition stack
// observed at a non-directive line, i.e. the condition signature of each
// reachable control-flow path. The filename is used in error messages only.
func Conditions(filename, source string) ([]tags.Tag, error) {
	var stack []tags.Cond
	seen := make(map[string]tags.Tag)

	for i, line := range splitLines(source) {
		d, ok := directive.Match(line)
		if !ok {
			// Record a copy of the current stack as an unordered signature.
			sig := tags.New(stack...)
			seen[sig.String()] = sig
			continue
		}
		switch d.Kind {
		case directive.KindIf, directive.KindIfdef:
			stack = append(stack, d.Cond())
		case directive.KindElse:
			if len(stack) == 0 {
				return nil, lineErr(filename, i+1, `unexpected "#else"`)
			}
			stack[len(stack)-1] = stack[len(stack)-1].Not()
		case directive.KindEndif:
			if len(stack) == 0 {
				return nil, lineErr(filename, i+1, `unexpected "#endif"`)
			}
			stack = stack[:len(stack)-1]
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]tags.Tag, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out, nil
}

func lineErr(filename string, line int, msg string) error {
	return fmt.Errorf("%s:%d: %w", filename, line, &directive.StructuralError{Msg: msg})
}

// Enumerate derives all complete, consistent configurations from the
// observed condition stacks. Candidates are generated by brute force:
// every way of unioning one stack per slot is considered, inconsistent
// unions are discarded, and survivors are completed by defaulting every
// unmentioned condition name to false. The search is exponential in the
// number of distinct stacks, which is acceptable only for the small
// condition counts this tool is built for.
func Enumerate(stacks []tags.Tag) []*Config {
	candidates := selections(stacks)

	var consistent []tags.Tag
	allNames := make(map[string]bool)
	for _, cand := range candidates {
		if !cand.Consistent() {
			continue
		}
		consistent = append(consistent, cand)
		for _, c := range cand {
			allNames[c.Name] = true
		}
	}

	byKey := make(map[string]*Config)
	for _, cand := range consistent {
		conds := append(tags.Tag(nil), cand...)
		named := make(map[string]bool, len(conds))
		for _, c := range conds {
			named[c.Name] = true
		}
		for name := range allNames {
			if !named[name] {
				conds = append(conds, tags.Cond{Name: name, Value: false})
			}
		}
		cfg := New(tags.New(conds...))
		byKey[cfg.Key()] = cfg
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Config, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// Configurations scans source and enumerates its configurations.
func Configurations(filename, source string) ([]*Config, error) {
	stacks, err := Conditions(filename, source)
	if err != nil {
		return nil, err
	}
	return Enumerate(stacks), nil
}

// selections generates every union obtainable by choosing one stack per
// slot, with as many slots as there are stacks, deduplicated by content.
func selections(stacks []tags.Tag) []tags.Tag {
	n := len(stacks)
	if n == 0 {
		return nil
	}
	seen := make(map[string]tags.Tag)
	idx := make([]int, n)
	for {
		var union []tags.Cond
		for _, i := range idx {
			union = append(union, stacks[i]...)
		}
		t := tags.New(union...)
		seen[t.String()] = t

		pos := n - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < n {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]tags.Tag, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}

// splitLines splits source into physical lines without their line endings.
func splitLines(source string) []string {
	source = strings.TrimSuffix(source, "\n")
	if source == "" {
		return nil
	}
	return strings.Split(source, "\n")
}
