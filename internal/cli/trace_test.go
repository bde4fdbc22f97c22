package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/harness"
	"github.com/roach88/synth/internal/journal"
	"github.com/roach88/synth/internal/testutil"
)

// simulateInto journals one simulated run of script under runID.
func simulateInto(t *testing.T, dbPath, runID string, start time.Time, script string) {
	t.Helper()

	cmd := newSimulateCommand(&SimulateOptions{
		RootOptions: &RootOptions{Format: "text"},
		Start:       start,
		RunIDs:      journal.NewFixedGenerator(runID),
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--journal", dbPath, writeScript(t, script)})
	require.NoError(t, cmd.Execute())
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTrace_NoJournal(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal")
}

func TestTrace_JournalNotFound(t *testing.T) {
	_, err := executeTrace(t, "text", "--journal", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal not found")
}

func TestTrace_EmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	_, err = executeTrace(t, "text", "--journal", dbPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal has no runs")

	out, err := executeTrace(t, "text", "--journal", dbPath, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs journaled.")
}

func TestTrace_Text(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\n")

	out, err := executeTrace(t, "text", "--journal", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Run:     sim-1 (simulate)")
	assert.Contains(t, out, "Steps:   6 (1 commands, 0 rejected)")
	assert.Contains(t, out, "Tasks:   1 completed, 0 maintenance holds")
	assert.Contains(t, out, "#2 +0s CREATE_TASK(priority=2, sequence=AT) accepted")
	assert.Contains(t, out, "#6 +2s timer:element_tick accepted")
	assert.Contains(t, out, "production: busy.taskCompleted -> idle")
}

func TestTrace_MatchesScenarioGolden(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\n")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	steps, err := j.ReadSteps(t.Context(), "sim-1")
	require.NoError(t, err)

	// The simulated run and the single_task scenario drive the same inputs.
	scenario, err := harness.LoadScenario(filepath.Join(harnessScenarios, "single_task.yaml"))
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, result.Trace, harness.TraceFromSteps(steps, testutil.Epoch))
}

func TestTrace_CommandsOnlyJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\nedit 1\ncreate 1 G\n")

	out, err := executeTrace(t, "json", "--journal", dbPath, "--commands", "sim-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		RunID  string      `json:"run_id"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "sim-1", resp.RunID)
	require.Len(t, resp.Data.Trace, 3)

	// EDIT_TASK on the processing task is refused by its guard.
	assert.Equal(t, "EDIT_TASK(id=1)", resp.Data.Trace[1].Trigger)
	assert.Equal(t, "rejected", resp.Data.Trace[1].Outcome)
	assert.Equal(t, 3, resp.Data.Stats.Commands)
	assert.Equal(t, 1, resp.Data.Stats.Rejected)
	assert.Equal(t, 2, resp.Data.Stats.Completed)
}

func TestTrace_RunNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\n")

	_, err := executeTrace(t, "text", "--journal", dbPath, "sim-9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: sim-9")
}

func TestTrace_List(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\n")
	simulateInto(t, dbPath, "sim-2", testutil.Epoch.Add(time.Hour), "create 3 GC\n")

	out, err := executeTrace(t, "json", "--journal", dbPath, "--list")
	require.NoError(t, err)

	var resp struct {
		Data []RunInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "sim-1", resp.Data[0].ID)
	assert.Equal(t, "sim-2", resp.Data[1].ID)
	assert.Equal(t, journal.ModeSimulate, resp.Data[1].Mode)

	// Latest run is the default.
	text, err := executeTrace(t, "text", "--journal", dbPath)
	require.NoError(t, err)
	assert.Contains(t, text, "Run:     sim-2 (simulate)")
}
