package cython

import "strings"

// NewlineToken is the sentinel that stands in for a newline inside a folded
// multi-line comment. It keeps each comment on one physical line through
// the merge and is restored by RestoreNewlines on final emission.
const NewlineToken = " <cypp: REPLACE WITH NEWLINE!> "

// Postprocess prepares raw compiler output for merging: it prepends the
// banner, strips the timestamp from Cython's own header comment so that
// otherwise identical outputs compare equal, and folds multi-line C
// comments onto single physical lines using NewlineToken.
func Postprocess(content, banner string) string {
	var result []string
	result = append(result, "/* "+banner+" */\n")

	lines := strings.SplitAfter(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return strings.Join(result, "")
	}

	first := strings.TrimSpace(lines[0])
	if strings.HasPrefix(strings.ToLower(first), "/* generated by cython ") && strings.HasSuffix(first, "*/") {
		// "/* Generated by Cython 0.x on <date> */" -> drop the date.
		head, _, found := strings.Cut(first, " on ")
		if found {
			result = append(result, head+" */")
		} else {
			result = append(result, lines[0])
		}
	} else {
		result = append(result, lines[0])
	}

	inComment := false
	for _, line := range lines[1:] {
		if strings.HasSuffix(line, "\n") {
			line = strings.TrimRight(line[:len(line)-1], " \t") + "\n"
		}
		if inComment {
			if strings.Contains(line, "*/") {
				inComment = false
				result = append(result, line)
			} else {
				result = append(result, strings.ReplaceAll(line, "\n", NewlineToken))
			}
			continue
		}
		stripped := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(stripped, "/* ") && !strings.Contains(line, "*/") {
			// Cython indents some comment openers; align them.
			result = append(result, strings.ReplaceAll(stripped, "\n", NewlineToken))
			inComment = true
		} else {
			result = append(result, line)
		}
	}
	return strings.Join(result, "")
}

// RestoreNewlines undoes the comment folding of Postprocess.
func RestoreNewlines(s string) string {
	return strings.ReplaceAll(s, NewlineToken, "\n")
}
