package pipeline

import (
	"regexp"
	"strings"
)

// urlLiteralPattern matches a string literal holding an absolute http(s) URL
// with a path. Go regexps have no backreferences, so each quote style is its
// own alternative.
//
//	1: string prefix letters (r, b, u, f and pairs such as rf)
//	2: path of a double-quoted literal, starting with "/"
//	3: path of a single-quoted literal, starting with "/"
var urlLiteralPattern = regexp.MustCompile(
	`([rRbBuUfF]{0,2})(?:"https?://[^/"\s]+(/[^"\s]*)"|'https?://[^/'\s]+(/[^'\s]*)')`,
)

// RewriteURL replaces the first absolute-URL literal on line with a call to
// resolver on the literal's path. The quote style is kept, and so is an f
// prefix so interpolated path segments still work. URLs inside triple-quoted
// strings are left alone. Lines without a match are returned unchanged.
func RewriteURL(line, resolver string) string {
	if resolver == "" {
		return line
	}
	for from := 0; from < len(line); {
		m := urlLiteralPattern.FindStringSubmatchIndex(line[from:])
		if m == nil {
			return line
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += from
			}
		}
		prefix := line[m[2]:m[3]]
		quote, path := `"`, ""
		if m[4] >= 0 {
			path = line[m[4]:m[5]]
		} else {
			quote, path = `'`, line[m[6]:m[7]]
		}
		if inTripleQuote(line, m[3], m[1], quote[0]) {
			from = m[1]
			continue
		}
		keep := ""
		if strings.ContainsAny(prefix, "fF") {
			keep = "f"
		}
		call := resolver + "(" + keep + quote + path + quote + ")"
		return line[:m[0]] + call + line[m[1]:]
	}
	return line
}

// inTripleQuote reports whether the literal whose opening quote is at open
// and which ends just before end is flanked by another q on either side.
func inTripleQuote(line string, open, end int, q byte) bool {
	return (open > 0 && line[open-1] == q) || (end < len(line) && line[end] == q)
}
