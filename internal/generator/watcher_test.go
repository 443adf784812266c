package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherSurfaceOf(t *testing.T) {
	w := &Watcher{apisDir: "apis", include: "log*"}
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{filepath.Join("apis", "login", "swagger.yaml"), "login", true},
		{filepath.Join("apis", "login", "requirements.txt"), "login", true},
		{filepath.Join("apis", "login", "scenarios.txt"), "", false},
		{filepath.Join("apis", "register", "swagger.yaml"), "register", false},
		{filepath.Join("apis", "login", "nested", "swagger.yaml"), "", false},
	}
	for _, tc := range cases {
		got, ok := w.surfaceOf(tc.path)
		assert.Equal(t, tc.ok, ok, tc.path)
		if tc.ok {
			assert.Equal(t, tc.want, got)
		}
	}
}

func TestWatcherReportsChangedSurface(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "login"), 0o755))

	w, err := NewWatcher(root, "*", 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "login", "swagger.yaml"), []byte("openapi: 3.0.0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "login", "requirements.txt"), []byte("x\n"), 0o644))

	select {
	case name := <-w.Changes():
		assert.Equal(t, "login", name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherIgnoresScenarioFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "login"), 0o755))

	w, err := NewWatcher(root, "*", 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "login", "scenarios.txt"), []byte("a\n"), 0o644))

	select {
	case name := <-w.Changes():
		t.Fatalf("unexpected change for %s", name)
	case <-time.After(200 * time.Millisecond):
	}
}
