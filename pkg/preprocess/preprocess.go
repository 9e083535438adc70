// Package preprocess runs a single preprocessing pass over a source file:
// it registers #define macros, resolves #if/#ifdef/#else/#endif against one
// configuration, and emits macro-expanded lines that remember their
// originating source line. With a nil configuration it runs in reference
// mode, leaving conditional directives in place unresolved.
package preprocess

import (
	"fmt"
	"strings"

	"github.com/raymyers/cypp/pkg/configs"
	"github.com/raymyers/cypp/pkg/directive"
	"github.com/raymyers/cypp/pkg/macro"
)

// Line is one emitted output line. Text keeps its trailing newline;
// SourceLine is the 1-based physical line it came from, used by the
// aligner to synchronize the per-configuration streams.
type Line struct {
	Text       string
	SourceLine int
}

// Run preprocesses source for the given configuration. A nil cfg selects
// reference mode: conditions are never resolved and directives pass
// through verbatim. The filename is used in error messages only.
// Each pass owns a fresh macro table; definitions do not persist across
// configurations.
func Run(filename, source string, cfg *configs.Config) ([]Line, error) {
	definitions := macro.NewTable()
	var including []bool
	var current *macro.Definition
	var result []Line

	for i, raw := range splitLines(source) {
		lineno := i + 1
		rstripped := strings.TrimRight(raw, " \t\r\n")
		stripped := strings.TrimLeft(rstripped, " \t")

		if current != nil {
			if strings.HasSuffix(rstripped, `\`) {
				current.Append(strings.TrimRight(rstripped[:len(rstripped)-1], " \t"))
			} else {
				current.Append(rstripped)
				current = nil
			}
			continue
		}

		if def, ok := matchDefineIfIncluding(stripped, including); ok {
			d, err := definitions.Define(def.Name, def.Params, def.Value)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", filename, lineno, err)
			}
			if def.Continued {
				current = d
			}
			continue
		}

		if d, ok := directive.Match(stripped); ok && cfg != nil {
			switch d.Kind {
			case directive.KindElse:
				if len(including) == 0 {
					return nil, fmt.Errorf("%s:%d: %w", filename, lineno,
						&directive.StructuralError{Msg: `unexpected "#else"`})
				}
				including[len(including)-1] = !including[len(including)-1]
			case directive.KindEndif:
				if len(including) == 0 {
					return nil, fmt.Errorf("%s:%d: %w", filename, lineno,
						&directive.StructuralError{Msg: `unexpected "#endif"`})
				}
				including = including[:len(including)-1]
			default:
				including = append(including, cfg.IsTrue(d))
			}
			continue
		}

		if excluded(including) {
			continue
		}

		if strings.HasPrefix(stripped, "#") {
			// Comments and pragmas for the downstream compiler, as is.
			result = append(result, Line{Text: raw + "\n", SourceLine: lineno})
			continue
		}

		expanded, err := definitions.Expand(raw + "\n")
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, lineno, err)
		}
		for _, text := range strings.Split(strings.TrimSuffix(expanded, "\n"), "\n") {
			result = append(result, Line{Text: text + "\n", SourceLine: lineno})
		}
	}
	return result, nil
}

// matchDefineIfIncluding matches #define only when every enclosing
// conditional section is active.
func matchDefineIfIncluding(stripped string, including []bool) (*directive.Define, bool) {
	if excluded(including) {
		return nil, false
	}
	return directive.MatchDefine(stripped)
}

// excluded reports whether any enclosing conditional section is false.
func excluded(including []bool) bool {
	for _, active := range including {
		if !active {
			return true
		}
	}
	return false
}

// Text joins the lines back into one string.
func Text(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Text)
	}
	return sb.String()
}

func splitLines(source string) []string {
	source = strings.TrimSuffix(source, "\n")
	if source == "" {
		return nil
	}
	return strings.Split(source, "\n")
}
