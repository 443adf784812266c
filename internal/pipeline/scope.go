package pipeline

// Scope is the per-block state of the line pass: whether the previous lines
// opened a function body that has not been closed by a blank line yet.
type Scope int

const (
	ScopeOutside Scope = iota
	ScopeInside
)

func (s Scope) String() string {
	if s == ScopeInside {
		return "inside"
	}
	return "outside"
}

// Step classifies line given the current scope and returns the next scope.
//
// A function header moves to inside. A blank line always leaves the body and
// is emitted as an empty line. A markdown fence also leaves the body and is
// then handled as prose. Inside a body every other line is code, so prose is
// only ever produced outside.
func (c *Classifier) Step(s Scope, line string) (ClassifiedLine, Scope) {
	tag := c.Classify(line)
	switch {
	case tag == TagBlank:
		return ClassifiedLine{Tag: TagBlank}, ScopeOutside
	case IsFence(line):
		return ClassifiedLine{Text: line, Tag: TagProse}, ScopeOutside
	case IsFunctionDef(line):
		return ClassifiedLine{Text: line, Tag: TagCode, FuncDef: true}, ScopeInside
	case s == ScopeInside:
		return ClassifiedLine{Text: line, Tag: TagCode}, ScopeInside
	default:
		return ClassifiedLine{Text: line, Tag: tag}, s
	}
}

// StepStrict classifies line by the base rules alone. Any non-indented line
// that does not start with a code token is prose, even after a header.
func (c *Classifier) StepStrict(line string) ClassifiedLine {
	tag := c.Classify(line)
	if tag == TagBlank {
		return ClassifiedLine{Tag: TagBlank}
	}
	return ClassifiedLine{Text: line, Tag: tag, FuncDef: IsFunctionDef(line)}
}
