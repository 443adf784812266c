package pipeline

import (
	"regexp"
	"strings"
)

// Tag is the classification of one raw line of model output.
type Tag int

const (
	TagCode Tag = iota
	TagBlank
	TagProse
)

func (t Tag) String() string {
	switch t {
	case TagCode:
		return "code"
	case TagBlank:
		return "blank"
	case TagProse:
		return "prose"
	default:
		return "unknown"
	}
}

// ClassifiedLine pairs a line with its tag. FuncDef marks a function header.
type ClassifiedLine struct {
	Text    string
	Tag     Tag
	FuncDef bool
}

// funcDefPattern matches a function header after leading whitespace is removed.
var funcDefPattern = regexp.MustCompile(`^(?:async\s+)?def\s`)

// IsFence reports whether line is a markdown code fence such as "```python".
func IsFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// IsFunctionDef reports whether line starts a function definition.
func IsFunctionDef(line string) bool {
	return funcDefPattern.MatchString(strings.TrimLeft(line, " \t"))
}

// Classifier tags lines using prefix heuristics. The zero value is not
// usable; build one with NewClassifier.
type Classifier struct {
	tokens []string
}

// NewClassifier returns a classifier that also treats lines starting with the
// base-URL constant or the endpoint resolver as code.
func NewClassifier(baseConstant, resolver string) *Classifier {
	tokens := []string{"import ", "from ", "@", "assert", "requests."}
	for _, tok := range []string{baseConstant, resolver} {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return &Classifier{tokens: tokens}
}

// Classify applies the base rules without any scope information. Markdown
// fences are prose even when indented.
func (c *Classifier) Classify(line string) Tag {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return TagBlank
	}
	if IsFence(stripped) {
		return TagProse
	}
	if IsFunctionDef(stripped) {
		return TagCode
	}
	for _, tok := range c.tokens {
		if strings.HasPrefix(stripped, tok) {
			return TagCode
		}
	}
	if line[0] == ' ' || line[0] == '\t' {
		return TagCode
	}
	return TagProse
}
