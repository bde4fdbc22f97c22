package cli

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/testutil"
)

func executeReplay(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

const busyScript = `create 1 ATGCA
create 3 GG
advance 1500ms
delete 2
cancel-delete 2
create 2 TTT
advance 3s
edit 3
update 3 3 CCCC
`

func TestReplay_LatestRunIdentical(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, busyScript)

	out, err := executeReplay(t, "text", "--journal", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sim-1:")
	assert.Contains(t, out, "steps identical")
}

func TestReplay_AllJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\n")
	simulateInto(t, dbPath, "sim-2", testutil.Epoch.Add(time.Hour), busyScript)

	out, err := executeReplay(t, "json", "--journal", dbPath, "--all")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.TotalRuns)
	assert.True(t, resp.Data.AllDeterministic)
	assert.Equal(t, 6, resp.Data.Runs[0].Steps)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, busyScript)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE steps SET snapshot_hash = 'feedfacefeedface' WHERE run_id = 'sim-1' AND seq = (SELECT MAX(seq) FROM steps)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := executeReplay(t, "text", "--journal", dbPath, "sim-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ sim-1: diverged at seq")
}

func TestReplay_FlagConflicts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "synth.db")
	simulateInto(t, dbPath, "sim-1", testutil.Epoch, "create 2 AT\n")

	_, err := executeReplay(t, "text", "--journal", dbPath, "--all", "sim-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeReplay(t, "text", "--journal", dbPath, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}
