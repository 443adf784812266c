// Package pipeline turns free-form model output into pytest code: it tags
// each line, tracks function scope, fixes test signatures, replaces
// hardcoded URLs and assembles the blocks into one test module.
package pipeline

import (
	"strings"
)

// Policy selects how lines that do not look like code are handled.
type Policy string

const (
	// PolicyScoped keeps every non-blank line after a function header as code
	// until a blank line closes the body.
	PolicyScoped Policy = "scoped"
	// PolicyStrict comments out every non-indented line that does not start
	// with a code token, regardless of scope.
	PolicyStrict Policy = "strict"
)

// Options configures the names the generated code relies on.
type Options struct {
	Fixture       string
	BaseConstant  string
	Resolver      string
	CommentMarker string
	Policy        Policy
}

// DefaultOptions returns the names used by the bundled preamble and conftest.
func DefaultOptions() Options {
	return Options{
		Fixture:       "access_token",
		BaseConstant:  "BASE_URL",
		Resolver:      "get_endpoint_url",
		CommentMarker: "#",
		Policy:        PolicyScoped,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if strings.TrimSpace(o.Fixture) == "" {
		o.Fixture = d.Fixture
	}
	if strings.TrimSpace(o.BaseConstant) == "" {
		o.BaseConstant = d.BaseConstant
	}
	if strings.TrimSpace(o.Resolver) == "" {
		o.Resolver = d.Resolver
	}
	if strings.TrimSpace(o.CommentMarker) == "" {
		o.CommentMarker = d.CommentMarker
	}
	if o.Policy != PolicyStrict {
		o.Policy = PolicyScoped
	}
	return o
}

// TestBlock is the final code for one scenario.
type TestBlock struct {
	Scenario string
	Lines    []string
}

// Outcome is the result of generating one scenario: either a block or the
// error that prevented it.
type Outcome struct {
	Scenario string
	Block    *TestBlock
	Err      error
}

// OK reports whether the outcome carries a block.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Block != nil
}

// Succeeded wraps a finished block.
func Succeeded(b TestBlock) Outcome {
	return Outcome{Scenario: b.Scenario, Block: &b}
}

// Failed records that scenario could not be generated.
func Failed(scenario string, err error) Outcome {
	return Outcome{Scenario: scenario, Err: err}
}

// Pipeline transforms raw model responses. It holds no per-block state and
// is safe to reuse across scenarios.
type Pipeline struct {
	opts       Options
	classifier *Classifier
}

// New builds a pipeline; empty option fields fall back to DefaultOptions.
func New(opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		opts:       opts,
		classifier: NewClassifier(opts.BaseConstant, opts.Resolver),
	}
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// Classify runs the classifier and scope tracker over raw, starting outside
// any function.
func (p *Pipeline) Classify(raw string) []ClassifiedLine {
	lines := SplitLines(raw)
	out := make([]ClassifiedLine, 0, len(lines))
	scope := ScopeOutside
	for _, line := range lines {
		if p.opts.Policy == PolicyStrict {
			out = append(out, p.classifier.StepStrict(line))
			continue
		}
		var cl ClassifiedLine
		cl, scope = p.classifier.Step(scope, line)
		out = append(out, cl)
	}
	return out
}

// Transform turns one raw response into a test block. Leading and trailing
// blank lines are dropped so blocks join with exactly one blank line.
func (p *Pipeline) Transform(scenario, raw string) TestBlock {
	classified := p.Classify(raw)
	lines := make([]string, 0, len(classified))
	for _, cl := range classified {
		lines = append(lines, p.render(cl))
	}
	return TestBlock{Scenario: scenario, Lines: trimBlank(lines)}
}

func (p *Pipeline) render(cl ClassifiedLine) string {
	switch cl.Tag {
	case TagBlank:
		return ""
	case TagProse:
		return p.opts.CommentMarker + " " + cl.Text
	}
	line := cl.Text
	if cl.FuncDef {
		line = NormalizeSignature(line, p.opts.Fixture)
	}
	return RewriteURL(line, p.opts.Resolver)
}

// SplitLines splits text on LF or CRLF. A single trailing newline does not
// produce an extra empty line.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return lines[start:end]
}
