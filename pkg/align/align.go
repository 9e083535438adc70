// Package align pads the per-configuration preprocessed streams with blank
// filler lines so that corresponding original source lines occupy the same
// index in every stream. The downstream merge is purely line-positional, so
// content differences between configurations land at matching offsets.
package align

import "github.com/raymyers/cypp/pkg/preprocess"

// Expand aligns the given streams, keyed by configuration identity.
// The result maps each key to its padded line texts; every value has the
// same length, and fillers are bare newlines.
func Expand(streams map[string][]preprocess.Line) map[string][]string {
	keys := make([]string, 0, len(streams))
	pending := make(map[string][]preprocess.Line, len(streams))
	out := make(map[string][]string, len(streams))
	for key, lines := range streams {
		keys = append(keys, key)
		pending[key] = lines
		out[key] = nil
	}

	for {
		minLine, ok := smallestSourceLine(pending)
		if !ok {
			break
		}

		for _, key := range keys {
			lines := pending[key]
			if len(lines) > 0 && lines[0].SourceLine <= minLine {
				out[key] = append(out[key], lines[0].Text)
				pending[key] = lines[1:]
			}
		}

		longest := 0
		for _, key := range keys {
			if len(out[key]) > longest {
				longest = len(out[key])
			}
		}
		for _, key := range keys {
			for len(out[key]) < longest {
				out[key] = append(out[key], "\n")
			}
		}
	}
	return out
}

// smallestSourceLine finds the next pending source line across all streams.
func smallestSourceLine(pending map[string][]preprocess.Line) (int, bool) {
	found := false
	min := 0
	for _, lines := range pending {
		if len(lines) == 0 {
			continue
		}
		if !found || lines[0].SourceLine < min {
			min = lines[0].SourceLine
			found = true
		}
	}
	return min, found
}
