package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/testgen/internal/store"
	"github.com/yourorg/testgen/pkg/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitWritesConfigAndConftest(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_KEY", "")
	proj := t.TempDir()
	cfgPath := filepath.Join(home, "cfg", "config.yaml")

	out, err := execute(t, "init", "--config", cfgPath, "--dir", proj)
	require.NoError(t, err)
	assert.Contains(t, out, "created "+cfgPath)
	assert.Contains(t, out, "please set llm.api_key")

	conftest, err := os.ReadFile(filepath.Join(proj, "conftest.py"))
	require.NoError(t, err)
	assert.Contains(t, string(conftest), "def access_token():")
	assert.Contains(t, string(conftest), `os.environ.get("TOKEN_URL")`)
	assert.DirExists(t, filepath.Join(proj, "apis"))
	assert.DirExists(t, filepath.Join(proj, "tests"))
	assert.FileExists(t, filepath.Join(home, ".testgen", "testgen.db"))

	out, err = execute(t, "init", "--config", cfgPath, "--dir", proj)
	require.NoError(t, err)
	assert.Contains(t, out, "exists "+cfgPath)
	assert.Contains(t, out, "exists "+filepath.Join(proj, "conftest.py"))
}

func TestConftestUsesConfiguredFixture(t *testing.T) {
	assert.Contains(t, conftestContent("token"), "def token():")
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TESTGEN_LLM_API_KEY", "")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "paths:\n  apis_dir: " + filepath.Join(dir, "apis") + "\n  tests_dir: " + filepath.Join(dir, "tests") + "\n  db: " + filepath.Join(dir, "t.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	_, err := execute(t, "generate", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestRunsCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "t.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("paths:\n  db: "+dbPath+"\n"), 0o644))

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	run, err := st.CreateRun("login", types.StageGenerate, "gpt-4")
	require.NoError(t, err)
	run.Status = types.StatusPartial
	run.ScenarioCount = 2
	run.FailedCount = 1
	require.NoError(t, st.FinishRun(run))
	require.NoError(t, st.SaveResults(run.ID, []types.ScenarioResult{
		{Seq: 1, Scenario: "login ok", Status: types.StatusOK, LineCount: 4},
		{Seq: 2, Scenario: "rejects empty password", Status: types.StatusFailed, ErrorMsg: "timeout"},
	}))
	require.NoError(t, st.Close())

	out, err := execute(t, "runs", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
	assert.Contains(t, out, "partial")

	out, err = execute(t, "runs", "show", "--config", cfgPath, "--run", run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "surface:   login")
	assert.Contains(t, out, "rejects empty password  (timeout)")

	out, err = execute(t, "runs", "delete", "--config", cfgPath, "--run", run.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deleted "))

	_, err = execute(t, "runs", "show", "--config", cfgPath, "--run", run.ID)
	assert.Error(t, err)
}
