// Package macro stores #define definitions and performs bounded recursive
// textual substitution at call sites. Expansion rewrites the input one
// leftmost occurrence at a time, re-scanning the substituted text, so
// macros may reference other macros; a self-referential macro or runaway
// chain is detected and reported rather than looping forever.
package macro

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/phuslu/log"
)

// maxSubstitutions bounds the rewrite loop. Practical inputs stay far
// below it; hitting it means a macro chain that keeps producing new text.
const maxSubstitutions = 20000

// Parameter names must be identifiers.
var paramNameRe = regexp.MustCompile(`^[a-zA-Z_]\w*$`)

// ErrInfiniteRecursion is reported when a substitution claims progress but
// leaves the text unchanged (a macro expanding to itself).
var ErrInfiniteRecursion = errors.New("infinite recursion in macro expansion")

// ErrTooManySubstitutions is reported when expansion is still changing the
// text after maxSubstitutions rewrites.
var ErrTooManySubstitutions = errors.New("too many macro substitutions")

// SyntaxError reports a malformed definition, such as an invalid
// parameter name.
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

// ArityError reports a parameterized macro invoked with the wrong number
// of arguments.
type ArityError struct {
	Name string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("invalid number of arguments for macro %s: expected %d, got %d",
		e.Name, e.Want, e.Got)
}

// Definition is one macro: an optional ordered parameter list and a body
// of one or more literal lines (continuation-joined).
type Definition struct {
	Name   string
	Params []string // nil for an object-like macro
	Lines  []string
}

// Append adds a continuation line to the definition body.
func (d *Definition) Append(line string) {
	d.Lines = append(d.Lines, line)
}

func (d *Definition) body() string {
	return strings.Join(d.Lines, "\n")
}

// Table holds the macro definitions of a single preprocessing pass.
type Table struct {
	defs map[string]*Definition
}

// NewTable creates an empty macro table.
func NewTable() *Table {
	return &Table{defs: make(map[string]*Definition)}
}

// Len returns the number of definitions.
func (t *Table) Len() int {
	return len(t.defs)
}

// Define registers a macro. rawParams is the parenthesized parameter list
// including parens, or empty for an object-like macro. The returned
// Definition is live: continuation lines may be appended to it.
func (t *Table) Define(name, rawParams, value string) (*Definition, error) {
	d := &Definition{Name: name, Lines: []string{value}}
	if rawParams != "" {
		params, err := parseParameterNames(rawParams)
		if err != nil {
			return nil, err
		}
		d.Params = params
	}
	t.defs[name] = d
	log.Debug().Str("macro", name).Msg("adding definition")
	return d, nil
}

// define registers an argument binding during parameterized expansion.
func (t *Table) define(name, value string) {
	t.defs[name] = &Definition{Name: name, Lines: []string{value}}
}

// parseParameterNames splits "(a, b, c)" into its identifiers.
func parseParameterNames(raw string) ([]string, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
	var params []string
	for _, p := range strings.Split(inner, ",") {
		p = strings.TrimSpace(p)
		if !paramNameRe.MatchString(p) {
			return nil, &SyntaxError{Msg: fmt.Sprintf("invalid parameter name: %q", p)}
		}
		params = append(params, p)
	}
	return params, nil
}

// invocationPattern matches one macro call site. A macro name must be
// preceded by start-of-line, ## or a non-word character, and followed by a
// parenthesized argument list, end-of-text, ## or a non-word character.
// Longer names sort first so a short name never matches inside a longer
// one.
func (t *Table) invocationPattern() *regexp.Regexp {
	names := make([]string, 0, len(t.defs))
	for name := range t.defs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return regexp.MustCompile(
		`(^|##|[^\w])(` + strings.Join(names, "|") + `)(\([^)]+\)|$|##|[^\w])`)
}

// Expand performs macro substitution over code until no occurrence
// remains. The text is rewritten one leftmost match at a time and
// re-scanned after every rewrite.
func (t *Table) Expand(code string) (string, error) {
	if len(t.defs) == 0 {
		return code, nil
	}
	re := t.invocationPattern()
	for i := 0; i < maxSubstitutions; i++ {
		next, replaced, err := t.replaceFirst(re, code)
		if err != nil {
			return "", err
		}
		if next == code {
			if replaced {
				return "", fmt.Errorf("%w: %s", ErrInfiniteRecursion, code)
			}
			return next, nil
		}
		code = next
	}
	return "", ErrTooManySubstitutions
}

// replaceFirst rewrites the leftmost macro invocation in code.
func (t *Table) replaceFirst(re *regexp.Regexp, code string) (string, bool, error) {
	m := re.FindStringSubmatchIndex(code)
	if m == nil {
		return code, false, nil
	}
	pre := code[m[2]:m[3]]
	name := code[m[4]:m[5]]
	post := code[m[6]:m[7]]

	def := t.defs[name]
	var result string
	if def.Params != nil {
		expanded, err := t.expandCall(def, post)
		if err != nil {
			return "", false, err
		}
		result = expanded
	} else {
		result = def.body()
		// ## suppresses the trailing character, concatenating tokens.
		if post != "##" {
			result += post
		}
	}
	if pre != "##" {
		result = pre + result
	}
	log.Debug().Str("macro", name).Str("with", result).Msg("replacing invocation")
	return code[:m[0]] + result + code[m[1]:], true, nil
}

// expandCall substitutes arguments into a parameterized macro body. The
// arguments themselves act as local definitions, so they are expanded
// recursively inside the body.
func (t *Table) expandCall(def *Definition, post string) (string, error) {
	var args []string
	if strings.HasPrefix(post, "(") && strings.HasSuffix(post, ")") {
		args = parseParameterValues(post)
	}
	if args == nil || len(args) != len(def.Params) {
		return "", &ArityError{Name: def.Name, Want: len(def.Params), Got: len(args)}
	}
	locals := NewTable()
	for i, param := range def.Params {
		locals.define(param, args[i])
	}
	return locals.Expand(def.body())
}

// parseParameterValues splits "(x, y)" into trimmed argument texts.
func parseParameterValues(raw string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
	parts := strings.Split(inner, ",")
	args := make([]string, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(p)
	}
	return args
}
