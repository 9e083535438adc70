// Package directive defines the preprocessor directive grammar: #define with
// optional parameters and continuation, and the conditional directives #if,
// #ifdef, #else and #endif. Lines whose stripped form starts with # but does
// not match this grammar are comments for the downstream compiler and pass
// through untouched.
package directive

import (
	"regexp"
	"strings"

	"github.com/raymyers/cypp/pkg/tags"
)

// First line of a macro definition.
var defineRe = regexp.MustCompile(`^#define\s+([a-zA-Z_]\w*)(\((?:[^,)]+,)*[^,)]+\))?\s+(.*)$`)

// Conditional directive.
var conditionRe = regexp.MustCompile(`^#(ifdef\s+.+|if\s+.+|else\s*|endif\s*)$`)

// Kind discriminates the conditional directives.
type Kind int

const (
	KindIf Kind = iota
	KindIfdef
	KindElse
	KindEndif
)

// Directive is one parsed conditional directive.
type Directive struct {
	Kind      Kind
	Parameter string // condition expression for #if / macro name for #ifdef
}

// Cond returns the condition a #if or #ifdef directive tests.
// #ifdef NAME is normalized to the condition defined(NAME).
func (d *Directive) Cond() tags.Cond {
	name := d.Parameter
	if d.Kind == KindIfdef {
		name = "defined(" + name + ")"
	}
	return tags.Cond{Name: name, Value: true}
}

// Match parses a conditional directive from a raw source line. Lines ending
// in a colon are never directives; they are commented-out target code.
func Match(line string) (*Directive, bool) {
	stripped := strings.TrimSpace(line)
	if strings.HasSuffix(stripped, ":") {
		return nil, false
	}
	m := conditionRe.FindStringSubmatch(stripped)
	if m == nil {
		return nil, false
	}
	body := strings.TrimSpace(m[1])
	word, rest, _ := strings.Cut(body, " ")
	rest = strings.TrimSpace(rest)
	switch word {
	case "if":
		return &Directive{Kind: KindIf, Parameter: rest}, true
	case "ifdef":
		return &Directive{Kind: KindIfdef, Parameter: rest}, true
	case "else":
		return &Directive{Kind: KindElse}, true
	case "endif":
		return &Directive{Kind: KindEndif}, true
	}
	return nil, false
}

// Define is the first line of a #define directive. Params is the raw
// parenthesized parameter list, empty for an object-like macro. Continued
// reports whether the value ends in a backslash and the body continues on
// the next physical line.
type Define struct {
	Name      string
	Params    string
	Value     string
	Continued bool
}

// MatchDefine parses a #define from a stripped source line.
func MatchDefine(stripped string) (*Define, bool) {
	m := defineRe.FindStringSubmatch(stripped)
	if m == nil {
		return nil, false
	}
	d := &Define{Name: m[1], Params: m[2], Value: strings.TrimSpace(m[3])}
	if strings.HasSuffix(d.Value, `\`) {
		d.Value = strings.TrimRight(d.Value[:len(d.Value)-1], " \t")
		d.Continued = true
	}
	return d, true
}

// StructuralError reports an unmatched #else or #endif. Callers wrap it
// with the file name and line number of the offending directive.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string {
	return e.Msg
}
