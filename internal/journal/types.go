package journal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/engine"
)

// ErrRunNotFound is returned when a run id has no journal entry.
var ErrRunNotFound = errors.New("run not found")

// Run modes.
const (
	ModeLive     = "live"
	ModeSimulate = "simulate"
	ModeScenario = "scenario"
)

// Run is one engine lifetime.
type Run struct {
	ID        string
	StartedAt time.Time
	Mode      string
	Timing    config.Timing
}

// StepRecord is a journaled engine step.
//
// Summary columns duplicate parts of Snapshot so traces can be listed
// without decoding the full context.
type StepRecord struct {
	RunID       string
	Seq         int64
	At          time.Time
	TriggerKind engine.TriggerKind
	Trigger     string
	// Command is set for command steps; replay re-dispatches it.
	Command     *engine.Command
	Outcome     string
	Transitions []engine.Transition

	Production          engine.ProductionState
	QueueRegion         engine.QueueState
	QueueIDs            []int
	CompletedIDs        []int
	TasksCompletedInRow int
	Estimated           time.Duration

	// Snapshot is the canonical JSON of the engine snapshot.
	Snapshot     json.RawMessage
	SnapshotHash string
}

// timingRecord is the stored form of config.Timing.
type timingRecord struct {
	ElementSynthesisMS     int64 `json:"element_synthesis_ms"`
	OnMaintenanceMS        int64 `json:"on_maintenance_ms"`
	EstimateIntervalMS     int64 `json:"estimate_interval_ms"`
	TasksBeforeMaintenance int   `json:"tasks_before_maintenance"`
}

func toTimingRecord(t config.Timing) timingRecord {
	return timingRecord{
		ElementSynthesisMS:     t.ElementSynthesis.Milliseconds(),
		OnMaintenanceMS:        t.OnMaintenance.Milliseconds(),
		EstimateIntervalMS:     t.EstimateInterval.Milliseconds(),
		TasksBeforeMaintenance: t.TasksBeforeMaintenance,
	}
}

func (r timingRecord) timing() config.Timing {
	return config.Timing{
		ElementSynthesis:       time.Duration(r.ElementSynthesisMS) * time.Millisecond,
		OnMaintenance:          time.Duration(r.OnMaintenanceMS) * time.Millisecond,
		EstimateInterval:       time.Duration(r.EstimateIntervalMS) * time.Millisecond,
		TasksBeforeMaintenance: r.TasksBeforeMaintenance,
	}
}
