package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PreambleConfig names what the generated module defines before the tests.
type PreambleConfig struct {
	Fixture        string
	BaseConstant   string
	Resolver       string
	DefaultBaseURL string
}

// PreambleFor derives the preamble names from pipeline options.
func PreambleFor(o Options, defaultBaseURL string) PreambleConfig {
	o = o.withDefaults()
	return PreambleConfig{
		Fixture:        o.Fixture,
		BaseConstant:   o.BaseConstant,
		Resolver:       o.Resolver,
		DefaultBaseURL: defaultBaseURL,
	}
}

// DefaultPreamble returns the imports, base URL constant, resolver helper
// and usage notes that head every generated module.
func DefaultPreamble(cfg PreambleConfig) []string {
	if cfg.DefaultBaseURL == "" {
		cfg.DefaultBaseURL = "http://localhost:8000"
	}
	base, resolver := cfg.BaseConstant, cfg.Resolver
	return []string{
		"import os",
		"",
		"import pytest",
		"import requests",
		"from dotenv import load_dotenv",
		"",
		"load_dotenv()",
		fmt.Sprintf("%s = os.getenv(%q, %q)", base, base, cfg.DefaultBaseURL),
		"",
		"",
		fmt.Sprintf("def %s(path):", resolver),
		fmt.Sprintf(`    """Return the full URL for path (e.g. '/login') under %s."""`, base),
		fmt.Sprintf(`    return %s.rstrip("/") + "/" + path.lstrip("/")`, base),
		"",
		"",
		fmt.Sprintf("# The '%s' fixture is provided by conftest.py and reads credentials from .env.", cfg.Fixture),
		"# Do not store secrets in source code. Keep them in a .env file that is not committed.",
		fmt.Sprintf("# Every test function below takes '%s' as a parameter.", cfg.Fixture),
	}
}

// Document is one generated test module: a preamble and one outcome per
// scenario, in scenario order.
type Document struct {
	Preamble      []string
	Outcomes      []Outcome
	CommentMarker string
}

// Lines renders the document line by line. Failed outcomes become comment
// blocks naming the scenario and the error.
func (d Document) Lines() []string {
	marker := d.CommentMarker
	if marker == "" {
		marker = "#"
	}
	out := append([]string(nil), d.Preamble...)
	for _, o := range d.Outcomes {
		if len(out) > 0 {
			out = append(out, "")
		}
		switch {
		case o.OK() && len(o.Block.Lines) == 0:
			out = append(out, fmt.Sprintf("%s No code generated for scenario: %s", marker, o.Scenario))
			continue
		case o.OK():
			out = append(out, o.Block.Lines...)
			continue
		}
		out = append(out, FailureLines(marker, o.Scenario, o.Err)...)
	}
	return out
}

// Render returns the document text with a trailing newline.
func (d Document) Render() []byte {
	return []byte(strings.Join(d.Lines(), "\n") + "\n")
}

// FailureLines renders a failed scenario as comment lines only.
func FailureLines(marker, scenario string, err error) []string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	out := []string{fmt.Sprintf("%s Error generating test for scenario: %s", marker, scenario)}
	for _, l := range SplitLines(msg) {
		out = append(out, strings.TrimRight(marker+" "+l, " "))
	}
	return out
}

// WriteFile replaces path with data in one step: parent directories are
// created, data goes to a temporary file next to path, and that file is
// renamed over the target.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}
