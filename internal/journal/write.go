package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/synth/internal/engine"
)

// timeLayout keeps stored timestamps lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// BeginRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (j *Journal) BeginRun(ctx context.Context, run Run) error {
	timingJSON, err := MarshalCanonical(toTimingRecord(run.Timing))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, mode, timing)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.Mode,
		string(timingJSON),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteStep appends a step to a run.
// Uses ON CONFLICT(run_id, seq) DO NOTHING so a replayed write is ignored.
//
// Note: The run must exist (foreign key constraint).
func (j *Journal) WriteStep(ctx context.Context, runID string, step engine.Step) error {
	snapshotJSON, err := MarshalCanonical(step.Snapshot)
	if err != nil {
		return fmt.Errorf("write step %d: snapshot: %w", step.Seq, err)
	}

	commandJSON := ""
	if step.Trigger.Command != nil {
		data, err := MarshalCanonical(step.Trigger.Command)
		if err != nil {
			return fmt.Errorf("write step %d: command: %w", step.Seq, err)
		}
		commandJSON = string(data)
	}

	transitions := step.Transitions
	if transitions == nil {
		transitions = []engine.Transition{}
	}
	transitionsJSON, err := json.Marshal(transitions)
	if err != nil {
		return fmt.Errorf("write step %d: transitions: %w", step.Seq, err)
	}
	queueJSON, err := json.Marshal(step.Snapshot.QueueIDs())
	if err != nil {
		return fmt.Errorf("write step %d: queue ids: %w", step.Seq, err)
	}
	completedJSON, err := json.Marshal(step.Snapshot.CompletedIDs())
	if err != nil {
		return fmt.Errorf("write step %d: completed ids: %w", step.Seq, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO steps
		(run_id, seq, at, trigger_kind, trigger, command, outcome, transitions,
		 production, queue_region, queue_ids, completed_ids,
		 tasks_completed_in_row, estimated_ms, snapshot, snapshot_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		step.Seq,
		step.At.UTC().Format(timeLayout),
		string(step.Trigger.Kind),
		step.Trigger.String(),
		commandJSON,
		step.Outcome.String(),
		string(transitionsJSON),
		string(step.Snapshot.Production),
		string(step.Snapshot.QueueRegion),
		string(queueJSON),
		string(completedJSON),
		step.Snapshot.TasksCompletedInRow,
		step.Snapshot.AllTasksEstimatedTime.Milliseconds(),
		string(snapshotJSON),
		SnapshotHash(snapshotJSON),
	)
	if err != nil {
		return fmt.Errorf("write step %d: %w", step.Seq, err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
