package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Surface is one API under test: a directory holding requirements.txt and
// swagger.yaml.
type Surface struct {
	Name string
	Dir  string
}

func (s Surface) RequirementsPath() string { return filepath.Join(s.Dir, "requirements.txt") }
func (s Surface) SwaggerPath() string      { return filepath.Join(s.Dir, "swagger.yaml") }
func (s Surface) ScenariosPath() string    { return filepath.Join(s.Dir, "scenarios.txt") }

// TestPath is where the generated module for s is written under testsDir.
func (s Surface) TestPath(testsDir string) string {
	return filepath.Join(testsDir, s.Name, "test_"+s.Name+"_generated.py")
}

// Discover lists the subdirectories of apisDir whose name matches include,
// sorted by name. An empty include matches everything.
func Discover(apisDir, include string) ([]Surface, error) {
	if include == "" {
		include = "*"
	}
	if !doublestar.ValidatePattern(include) {
		return nil, fmt.Errorf("invalid include pattern %q", include)
	}
	entries, err := os.ReadDir(apisDir)
	if err != nil {
		return nil, fmt.Errorf("read apis dir: %w", err)
	}
	var out []Surface
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ok, err := doublestar.Match(include, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Surface{Name: e.Name(), Dir: filepath.Join(apisDir, e.Name())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Lookup returns the surface called name under apisDir.
func Lookup(apisDir, name string) (Surface, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return Surface{}, fmt.Errorf("invalid surface name %q", name)
	}
	dir := filepath.Join(apisDir, name)
	info, err := os.Stat(dir)
	if err != nil {
		return Surface{}, fmt.Errorf("surface %s: %w", name, err)
	}
	if !info.IsDir() {
		return Surface{}, fmt.Errorf("surface %s is not a directory", name)
	}
	return Surface{Name: name, Dir: dir}, nil
}
