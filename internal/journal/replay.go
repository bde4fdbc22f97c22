package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/synth/internal/engine"
)

// ErrEmptyRun is returned when replaying a run with no journaled steps.
var ErrEmptyRun = errors.New("run has no steps")

// ReplayResult compares a journaled run with a fresh re-execution.
type ReplayResult struct {
	RunID     string `json:"run_id"`
	Steps     int    `json:"steps"`
	Replayed  int    `json:"replayed"`
	Identical bool   `json:"identical"`

	// DivergedAt is the seq of the first mismatching step, 0 if none.
	DivergedAt int64  `json:"diverged_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Replay re-executes a run on a virtual clock and compares every step.
//
// The engine is deterministic given its command inputs and their times:
// journaled commands are re-dispatched at their recorded instants and
// timers fire in between on their own. Each replayed step must match the
// journaled one in seq and snapshot hash.
//
// Replay never writes to the journal and never restores live state.
func (j *Journal) Replay(ctx context.Context, runID string, logger *slog.Logger) (ReplayResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	run, err := j.ReadRun(ctx, runID)
	if err != nil {
		return ReplayResult{}, err
	}
	recorded, err := j.ReadSteps(ctx, runID)
	if err != nil {
		return ReplayResult{}, err
	}
	if len(recorded) == 0 {
		return ReplayResult{}, fmt.Errorf("%w: %s", ErrEmptyRun, runID)
	}
	if err := run.Timing.Validate(); err != nil {
		return ReplayResult{}, fmt.Errorf("run %s: %w", runID, err)
	}

	var replayed []engine.Step
	clock := engine.NewVirtualClock(recorded[0].At)
	eng := engine.New(run.Timing, clock,
		engine.WithLogger(logger),
		engine.WithObserver(func(s engine.Step) { replayed = append(replayed, s) }),
	)

	result := ReplayResult{RunID: runID, Steps: len(recorded)}

	for _, rec := range recorded {
		if rec.TriggerKind != engine.TriggerCommand {
			continue
		}
		if rec.Command == nil {
			return ReplayResult{}, fmt.Errorf("step %d: command step without payload", rec.Seq)
		}
		if err := eng.Advance(rec.At.Sub(clock.Now())); err != nil {
			return ReplayResult{}, err
		}
		if _, err := eng.Dispatch(*rec.Command); err != nil {
			// A journaled command was accepted or rejected, never failed.
			result.Replayed = len(replayed)
			result.DivergedAt = rec.Seq
			result.Reason = fmt.Sprintf("command %s failed on replay: %v", rec.Command, err)
			return result, nil
		}
	}
	last := recorded[len(recorded)-1]
	if err := eng.Advance(last.At.Sub(clock.Now())); err != nil {
		return ReplayResult{}, err
	}

	result.Replayed = len(replayed)
	for i, rec := range recorded {
		if i >= len(replayed) {
			result.DivergedAt = rec.Seq
			result.Reason = "step missing from replay"
			return result, nil
		}

		got := replayed[i]
		if got.Seq != rec.Seq {
			result.DivergedAt = rec.Seq
			result.Reason = fmt.Sprintf("replay produced seq %d", got.Seq)
			return result, nil
		}

		canonical, err := MarshalCanonical(got.Snapshot)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("step %d: %w", got.Seq, err)
		}
		if hash := SnapshotHash(canonical); hash != rec.SnapshotHash {
			result.DivergedAt = rec.Seq
			result.Reason = fmt.Sprintf("snapshot hash %s, journaled %s", hash[:12], rec.SnapshotHash[:min(12, len(rec.SnapshotHash))])
			return result, nil
		}
	}

	result.Identical = true
	return result, nil
}
