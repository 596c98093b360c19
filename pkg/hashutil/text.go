package hashutil

import "strings"

// TrimMargin drops everything up to and including the first occurrence of
// marker on each line of s. Lines without marker pass through unchanged.
// It exists only to de-indent test fixtures and sample rule/trust text.
func TrimMargin(s string, marker rune) string {
	lines := strings.Split(s, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		if idx := strings.IndexRune(line, marker); idx >= 0 {
			out[i] = line[idx+len(string(marker)):]
		} else {
			out[i] = line
		}
	}
	return strings.Join(out, "\n")
}

// Tokenize splits s on whitespace, grouping single- and double-quoted runs
// together and treating a backslash as escaping the next rune while inside
// a quoted group. An unclosed quote is terminated by end of input.
func Tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	inToken := false
	var quote rune // 0 when not in a quote

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if quote != 0 {
			if r == '\\' && i+1 < len(runes) {
				i++
				cur.WriteRune(runes[i])
				continue
			}
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
			continue
		}

		switch {
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			inToken = true
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
