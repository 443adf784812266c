package pipeline

import "strings"

// NormalizeSignature makes sure the parameter list of a function header
// names fixture exactly once.
//
// The parameter list is the text between the first "(" and its matching ")".
// When fixture is already a parameter the line is returned as is, unless it
// is listed more than once, in which case the later duplicates are dropped.
// Otherwise fixture is appended; it goes before the first parameter that has
// a default or is variadic so the header stays valid. Headers whose
// parentheses cannot be matched are returned unchanged.
func NormalizeSignature(line, fixture string) string {
	fixture = strings.TrimSpace(fixture)
	if fixture == "" {
		return line
	}
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return line
	}
	closing := matchParen(line, open)
	if closing < 0 {
		return line
	}

	params := splitParams(line[open+1 : closing])
	seen := 0
	kept := make([]string, 0, len(params)+1)
	for _, p := range params {
		if paramName(p) == fixture {
			seen++
			if seen > 1 {
				continue
			}
		}
		kept = append(kept, strings.TrimSpace(p))
	}
	switch {
	case seen == 1:
		return line
	case seen == 0:
		at := len(kept)
		for i, p := range kept {
			if strings.HasPrefix(p, "*") || hasTopLevel(p, '=') {
				at = i
				break
			}
		}
		kept = append(kept[:at], append([]string{fixture}, kept[at:]...)...)
	}
	return line[:open+1] + strings.Join(kept, ", ") + line[closing:]
}

// matchParen returns the index of the ")" closing the "(" at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	closing := -1
	scanTopLevel(s[open:], func(i int, c byte, d int) bool {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closing = open + i
				return false
			}
		}
		return true
	})
	return closing
}

// splitParams splits a parameter list on commas outside brackets and
// string literals. Empty segments, such as the one after a trailing comma,
// are dropped.
func splitParams(s string) []string {
	var out []string
	start := 0
	scanTopLevel(s, func(i int, c byte, depth int) bool {
		if c == ',' && depth == 0 {
			out = append(out, s[start:i])
			start = i + 1
		}
		return true
	})
	out = append(out, s[start:])

	params := out[:0]
	for _, p := range out {
		if strings.TrimSpace(p) != "" {
			params = append(params, p)
		}
	}
	return params
}

// paramName strips stars, annotation and default from a parameter.
func paramName(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "*")
	if i := strings.IndexAny(p, ":="); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}

func hasTopLevel(s string, want byte) bool {
	found := false
	scanTopLevel(s, func(_ int, c byte, depth int) bool {
		if c == want && depth == 0 {
			found = true
			return false
		}
		return true
	})
	return found
}

// scanTopLevel calls fn for every byte of s outside string literals along
// with the bracket depth before that byte. Scanning stops when fn returns
// false.
func scanTopLevel(s string, fn func(i int, c byte, depth int) bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if !fn(i, c, depth) {
			return
		}
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		}
	}
}
