package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/model"
)

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		line string
		want engine.Command
	}{
		{"create 2 ATGC", engine.CreateTask(model.PriorityAverage, "ATGC")},
		{"add critical gg", engine.CreateTask(model.PriorityCritical, "gg")},
		{"CREATE_TASK low A", engine.CreateTask(model.PriorityLow, "A")},
		{"update 4 1 TTT", engine.UpdateTask(4, model.PriorityLow, "TTT")},
		{"edit 3", engine.EditTask(3)},
		{"edit-task 3", engine.EditTask(3)},
		{"cancel-edit 3", engine.EditCanceled(3)},
		{"delete 7", engine.DeleteTask(7)},
		{"cancel-delete 7", engine.DeleteCanceled(7)},
		{"  destroy   7  ", engine.DestroyTask(7)},
		{"DESTROY_TASK 9", engine.DestroyTask(9)},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommandLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandLine_Errors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"", "empty command"},
		{"launch 1", "unknown command"},
		{"create 2", "want <priority> <sequence>"},
		{"create urgent ATG", "priority"},
		{"update 1 2", "want <id> <priority> <sequence>"},
		{"update x 2 ATG", "invalid task id"},
		{"edit", "want <id>"},
		{"delete 0", "invalid task id"},
		{"destroy -3", "invalid task id"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseCommandLine(tt.line)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCommandLine_PriorityError(t *testing.T) {
	_, err := ParseCommandLine("create 9 ATG")
	assert.ErrorIs(t, err, model.ErrInvalidPriority)
}

func TestParseScript(t *testing.T) {
	script := `
# two tasks, then let them run
create 1 ATG
create 3 GC

advance 2s
wait 500ms
delete 1
`
	lines, err := ParseScript(strings.NewReader(script))
	require.NoError(t, err)
	require.Len(t, lines, 5)

	require.NotNil(t, lines[0].Command)
	assert.Equal(t, 3, lines[0].Line)
	assert.Equal(t, engine.CmdCreateTask, lines[0].Command.Type)

	assert.Nil(t, lines[2].Command)
	assert.Equal(t, 2*time.Second, lines[2].Advance)
	assert.Equal(t, 500*time.Millisecond, lines[3].Advance)

	require.NotNil(t, lines[4].Command)
	assert.Equal(t, engine.DeleteTask(1), *lines[4].Command)
}

func TestParseScript_ReportsLine(t *testing.T) {
	tests := []struct {
		script string
		want   string
	}{
		{"create 1 A\nbogus 1\n", "line 2"},
		{"advance\n", "line 1: advance: want <duration>"},
		{"\n\nwait soon\n", "line 3"},
		{"advance -1s\n", "negative duration"},
	}

	for _, tt := range tests {
		_, err := ParseScript(strings.NewReader(tt.script))
		require.Error(t, err, tt.script)
		assert.Contains(t, err.Error(), tt.want)
	}
}
