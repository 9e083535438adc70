// Package emit walks the simplified merged line sequence and wraps runs of
// identically tagged lines in #if/#else/#endif blocks. A transition to the
// exact polarity complement of the open tag collapses to #else instead of
// closing and reopening the block.
package emit

import (
	"fmt"

	"github.com/raymyers/cypp/pkg/merge"
	"github.com/raymyers/cypp/pkg/tags"
)

// Produce re-encodes the tagged lines as conditional-compilation text.
func Produce(lines []merge.Line) []string {
	var out []string
	var open tags.List

	for _, line := range lines {
		key := line.Tags
		if key.Equal(open) {
			out = append(out, line.Text)
			continue
		}
		if tags.ExactReverse(key, open) {
			out = append(out, fmt.Sprintf("#else /* %s */\n", open))
		} else {
			if len(open) > 0 {
				out = append(out, fmt.Sprintf("#endif /* %s */\n", open))
			}
			if len(key) > 0 {
				out = append(out, fmt.Sprintf("#if %s\n", key))
			}
		}
		out = append(out, line.Text)
		open = key
	}
	if len(open) > 0 {
		out = append(out, fmt.Sprintf("#endif /* %s */\n", open))
	}
	return out
}
