package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/model"
)

const minimalScenario = `
name: minimal
description: "One task"
steps:
  - command: CREATE_TASK
    priority: 2
    sequence: atgc
  - advance: 1500ms
assertions:
  - type: streak
    count: 0
`

func TestLoadScenario_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 2)

	cmd, err := s.Steps[0].ToCommand()
	require.NoError(t, err)
	assert.Equal(t, engine.CreateTask(model.PriorityAverage, "atgc"), cmd)
	assert.Equal(t, ExpectAccepted, s.Steps[0].ExpectedResult())

	assert.True(t, s.Steps[1].IsAdvance())
	d, err := s.Steps[1].Duration()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{advance: 1s}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{advance: 1s}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "empty step",
			yaml:    "name: n\ndescription: d\nsteps: [{}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "steps[0]: command or advance is required",
		},
		{
			name:    "command and advance",
			yaml:    "name: n\ndescription: d\nsteps: [{command: EDIT_TASK, advance: 1s}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "unknown command",
			yaml:    "name: n\ndescription: d\nsteps: [{command: PAUSE}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "unknown command",
		},
		{
			name:    "bad duration",
			yaml:    "name: n\ndescription: d\nsteps: [{advance: soon}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "steps[0]: advance",
		},
		{
			name:    "unknown expect",
			yaml:    "name: n\ndescription: d\nsteps: [{command: EDIT_TASK, id: 1, expect: maybe}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: `unknown expect "maybe"`,
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{advance: 1s}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "bad status",
			yaml:    "name: n\ndescription: d\nsteps: [{advance: 1s}]\nassertions: [{type: task_status, id: 1, status: lost}]\n",
			wantErr: `unknown status "lost"`,
		},
		{
			name:    "bad timing",
			yaml:    "name: n\ndescription: d\ntiming: {tasks_before_maintenance: 0}\nsteps: [{advance: 1s}]\nassertions: [{type: streak, count: 0}]\n",
			wantErr: "timing:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTimingOverrides_Apply(t *testing.T) {
	ms := int64(2500)
	n := 3
	o := &TimingOverrides{OnMaintenanceMS: &ms, TasksBeforeMaintenance: &n}

	got := o.Apply(config.DefaultTiming())
	assert.Equal(t, 2500*time.Millisecond, got.OnMaintenance)
	assert.Equal(t, 3, got.TasksBeforeMaintenance)
	assert.Equal(t, config.DefaultTiming().ElementSynthesis, got.ElementSynthesis)

	var none *TimingOverrides
	assert.Equal(t, config.DefaultTiming(), none.Apply(config.DefaultTiming()))
}
