package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0o755))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "register", "login", "admin-users")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644))

	all, err := Discover(root, "")
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"admin-users", "login", "register"}, names)
	assert.Equal(t, filepath.Join(root, "login"), all[1].Dir)

	some, err := Discover(root, "{login,register}")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "login", some[0].Name)

	_, err = Discover(root, "[")
	assert.Error(t, err)

	_, err = Discover(filepath.Join(root, "missing"), "*")
	assert.Error(t, err)
}

func TestSurfacePaths(t *testing.T) {
	s := Surface{Name: "login", Dir: filepath.Join("apis", "login")}
	assert.Equal(t, filepath.Join("apis", "login", "requirements.txt"), s.RequirementsPath())
	assert.Equal(t, filepath.Join("apis", "login", "swagger.yaml"), s.SwaggerPath())
	assert.Equal(t, filepath.Join("apis", "login", "scenarios.txt"), s.ScenariosPath())
	assert.Equal(t, filepath.Join("tests", "login", "test_login_generated.py"), s.TestPath("tests"))
}

func TestLookup(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "login")

	s, err := Lookup(root, "login")
	require.NoError(t, err)
	assert.Equal(t, "login", s.Name)

	for _, bad := range []string{"", "..", "../login", "a/b", "missing"} {
		_, err := Lookup(root, bad)
		assert.Error(t, err, bad)
	}
}
