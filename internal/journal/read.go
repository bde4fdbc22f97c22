package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/synth/internal/engine"
)

// ListRuns returns every run ordered by start time, then id.
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, mode, timing
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run.
// Returns ErrRunNotFound if no such run exists.
func (j *Journal) ReadRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, started_at, mode, timing
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
// Returns ErrRunNotFound if the journal is empty.
func (j *Journal) LatestRun(ctx context.Context) (Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, started_at, mode, timing
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// ReadSteps returns every step of a run ordered by seq.
// Returns an empty slice (not nil) if the run has no steps.
func (j *Journal) ReadSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, at, trigger_kind, trigger, command, outcome, transitions,
		       production, queue_region, queue_ids, completed_ids,
		       tasks_completed_in_row, estimated_ms, snapshot, snapshot_hash
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		timingJSON string
	)
	if err := row.Scan(&run.ID, &startedAt, &run.Mode, &timingJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}

	var tr timingRecord
	if err := json.Unmarshal([]byte(timingJSON), &tr); err != nil {
		return Run{}, fmt.Errorf("run %s: timing: %w", run.ID, err)
	}
	run.Timing = tr.timing()

	return run, nil
}

func scanStep(row scanner) (StepRecord, error) {
	var (
		s                              StepRecord
		at, kind, command, transitions string
		snapshot                       string
		prod, region, queue, compl     string
		estimatedMS                    int64
	)
	err := row.Scan(
		&s.RunID, &s.Seq, &at, &kind, &s.Trigger, &command, &s.Outcome, &transitions,
		&prod, &region, &queue, &compl,
		&s.TasksCompletedInRow, &estimatedMS, &snapshot, &s.SnapshotHash,
	)
	if err != nil {
		return StepRecord{}, fmt.Errorf("scan step: %w", err)
	}

	if s.At, err = parseTime(at); err != nil {
		return StepRecord{}, fmt.Errorf("step %d: at: %w", s.Seq, err)
	}
	if command != "" {
		var cmd engine.Command
		if err := json.Unmarshal([]byte(command), &cmd); err != nil {
			return StepRecord{}, fmt.Errorf("step %d: command: %w", s.Seq, err)
		}
		s.Command = &cmd
	}
	if err := json.Unmarshal([]byte(transitions), &s.Transitions); err != nil {
		return StepRecord{}, fmt.Errorf("step %d: transitions: %w", s.Seq, err)
	}
	if err := json.Unmarshal([]byte(queue), &s.QueueIDs); err != nil {
		return StepRecord{}, fmt.Errorf("step %d: queue ids: %w", s.Seq, err)
	}
	if err := json.Unmarshal([]byte(compl), &s.CompletedIDs); err != nil {
		return StepRecord{}, fmt.Errorf("step %d: completed ids: %w", s.Seq, err)
	}

	s.TriggerKind = engine.TriggerKind(kind)
	s.Production = engine.ProductionState(prod)
	s.QueueRegion = engine.QueueState(region)
	s.Estimated = time.Duration(estimatedMS) * time.Millisecond
	s.Snapshot = json.RawMessage(snapshot)

	return s, nil
}
