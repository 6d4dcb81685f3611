package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ksred/linkdesk/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfig points linkdesk at a sqlite file in a temp dir
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	body := fmt.Sprintf(`database:
  driver: sqlite
  sqlite_path: %s
server:
  log_level: error
`, filepath.Join(dir, "linkdesk.db"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

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

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd()

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "run-patch", "mcp"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestMigrateCommand(t *testing.T) {
	cfgPath := writeConfig(t)

	out, err := execute(t, "migrate", "--config", cfgPath, "--dry-run")
	require.NoError(t, err)

	var pending map[string][]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &pending))
	assert.Len(t, pending["pending"], 4)

	out, err = execute(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)

	var report database.RunReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Executed, 4)

	out, err = execute(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)

	report = database.RunReport{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Empty(t, report.Executed)
	assert.Len(t, report.AlreadyApplied, 4)
}

func TestRunPatchCommand(t *testing.T) {
	cfgPath := writeConfig(t)
	patch := "linkdesk.patches.v1_0.rebuild_tree_bounds"

	_, err := execute(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "run-patch", patch, "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "already executed")

	out, err = execute(t, "run-patch", patch, "--force", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Executed "+patch+"\n", out)

	_, err = execute(t, "run-patch", "linkdesk.patches.v9.nope", "--config", cfgPath)
	assert.Error(t, err)

	_, err = execute(t, "run-patch", "--config", cfgPath)
	assert.Error(t, err, "identifier is required")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o600))

	_, err := execute(t, "migrate", "--config", path)
	assert.Error(t, err)
}
