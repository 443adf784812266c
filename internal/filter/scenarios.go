package filter

import (
	"regexp"
	"strings"
)

// listMarkerPattern matches a leading list marker: bullets, "1." / "1)" and
// "(1)" numbering.
var listMarkerPattern = regexp.MustCompile(`^(?:[-*+•]+|\d+[.)]|\(\d+\))\s+`)

// Scenarios turns the model's scenario answer into one scenario per entry.
// Blank lines, markdown fences and headings are dropped, and list markers,
// emphasis and wrapping quotes are stripped.
func Scenarios(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	out := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if s := cleanScenario(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cleanScenario(line string) string {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "```") || strings.HasPrefix(s, "#") {
		return ""
	}
	s = listMarkerPattern.ReplaceAllString(s, "")
	s = strings.Trim(s, "- ")
	s = strings.TrimSpace(strings.Trim(s, "*_"))
	for _, q := range []string{`"`, "'", "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
