package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/config"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfig_Defaults(t *testing.T) {
	out, err := executeRoot(t, "config")
	require.NoError(t, err)

	assert.Contains(t, out, "element_synthesis_ms:")
	assert.Contains(t, out, "1000")
	assert.Contains(t, out, "tasks_before_maintenance:")
}

func TestConfig_FromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synth.cue")
	require.NoError(t, os.WriteFile(path, []byte("on_maintenance_ms: 2500\ntasks_before_maintenance: 3\n"), 0o644))

	out, err := executeRoot(t, "config", "--config", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   config.Config `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2500, resp.Data.OnMaintenanceMS)
	assert.Equal(t, 3, resp.Data.TasksBeforeMaintenance)
	assert.Equal(t, 1000, resp.Data.ElementSynthesisMS)
}

func TestConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synth.cue")
	require.NoError(t, os.WriteFile(path, []byte("tasks_before_maintenance: 0\n"), 0o644))

	_, err := executeRoot(t, "config", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestConfig_TimingReachesSimulation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synth.cue")
	require.NoError(t, os.WriteFile(path, []byte("element_synthesis_ms: 250\n"), 0o644))
	script := writeScript(t, "create 2 ATGC\n")

	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"simulate", "--config", path, script})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "simulated 1s of virtual time")
}
