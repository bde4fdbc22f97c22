package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/harness"
	"github.com/roach88/synth/internal/journal"
)

// session is the optional journal attached to one engine run.
// A nil *session is valid and journals nothing.
type session struct {
	journal  *journal.Journal
	recorder *journal.Recorder
}

// openSession opens the journal at path and begins a run. An empty path
// disables journaling and returns a nil session.
func openSession(ctx context.Context, path, mode string, timing config.Timing, startedAt time.Time, ids journal.RunIDGenerator, logger *slog.Logger) (*session, error) {
	if path == "" {
		return nil, nil
	}
	if ids == nil {
		ids = journal.UUIDv7Generator{}
	}

	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}

	run := journal.Run{
		ID:        ids.Generate(),
		StartedAt: startedAt,
		Mode:      mode,
		Timing:    timing,
	}
	if err := j.BeginRun(ctx, run); err != nil {
		j.Close()
		return nil, WrapExitError(ExitCommandError, "failed to begin journal run", err)
	}

	logger.Info("journaling run", "run_id", run.ID, "journal", path, "mode", mode)
	return &session{
		journal:  j,
		recorder: journal.NewRecorder(ctx, j, run.ID, logger),
	}, nil
}

// options returns the engine options that feed the journal.
func (s *session) options() []engine.Option {
	if s == nil {
		return nil
	}
	return []engine.Option{engine.WithObserver(s.recorder.Observe)}
}

// RunID returns the journal run id, or "" without a journal.
func (s *session) RunID() string {
	if s == nil {
		return ""
	}
	return s.recorder.RunID()
}

// Close reports the first journal write error, then closes the database.
func (s *session) Close() error {
	if s == nil {
		return nil
	}
	werr := s.recorder.Err()
	cerr := s.journal.Close()
	if werr != nil {
		return WrapExitError(ExitFailure, "journal write failed", werr)
	}
	if cerr != nil {
		return WrapExitError(ExitFailure, "failed to close journal", cerr)
	}
	return nil
}

// stepPrinter writes engine steps as they happen. JSON output is one step
// object per line; text output leaves out the once-a-tick estimator steps.
func stepPrinter(w io.Writer, format string) engine.Observer {
	if format == "json" {
		enc := json.NewEncoder(w)
		return func(step engine.Step) {
			_ = enc.Encode(step)
		}
	}

	return func(step engine.Step) {
		if step.Trigger.Kind == engine.TriggerTimer && step.Trigger.Timer == "estimator_tick" {
			return
		}
		writeStep(w, step)
	}
}

func writeStep(w io.Writer, step engine.Step) {
	s := step.Snapshot
	fmt.Fprintf(w, "[%d] %s %s %s\n", step.Seq, step.At.Format("15:04:05.000"), step.Trigger, step.Outcome)
	for _, t := range step.Transitions {
		fmt.Fprintf(w, "    %s\n", harness.FormatTransition(t))
	}
	fmt.Fprintf(w, "    queue=%v completed=%d estimate=%s\n",
		s.QueueIDs(), len(s.CompletedTasks), s.AllTasksEstimatedTime)
}

// Summary describes the engine state when a command finished.
type Summary struct {
	RunID       string        `json:"run_id,omitempty"`
	Steps       int           `json:"steps"`
	Completed   []int         `json:"completed"`
	Queue       []int         `json:"queue"`
	Production  string        `json:"production"`
	EstimatedMS int64         `json:"estimated_ms"`
	EndTime     time.Time     `json:"end_time"`
	Timing      SummaryTiming `json:"timing"`
}

// SummaryTiming is the timing the engine ran with.
type SummaryTiming struct {
	ElementMS        int64 `json:"element_synthesis_ms"`
	MaintenanceMS    int64 `json:"on_maintenance_ms"`
	EstimateMS       int64 `json:"estimate_interval_ms"`
	MaintenanceEvery int   `json:"tasks_before_maintenance"`
}

func newSummary(runID string, steps int, eng *engine.Engine) (Summary, engine.Snapshot) {
	s := eng.Snapshot()
	timing := eng.Timing()
	return Summary{
		RunID:       runID,
		Steps:       steps,
		Completed:   s.CompletedIDs(),
		Queue:       s.QueueIDs(),
		Production:  string(s.Production),
		EstimatedMS: s.AllTasksEstimatedTime.Milliseconds(),
		EndTime:     s.AllTasksEndTime,
		Timing: SummaryTiming{
			ElementMS:        timing.ElementSynthesis.Milliseconds(),
			MaintenanceMS:    timing.OnMaintenance.Milliseconds(),
			EstimateMS:       timing.EstimateInterval.Milliseconds(),
			MaintenanceEvery: timing.TasksBeforeMaintenance,
		},
	}, s
}

// writeSummary prints the final state of an engine run.
func writeSummary(f *OutputFormatter, summary Summary, s engine.Snapshot) error {
	if f.JSON() {
		return f.Success(summary)
	}

	w := f.Writer
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Steps:      %d\n", summary.Steps)
	fmt.Fprintf(w, "Production: %s\n", summary.Production)
	fmt.Fprintf(w, "Completed:  %d %v\n", len(summary.Completed), summary.Completed)
	fmt.Fprintf(w, "Queued:     %d %v\n", len(summary.Queue), summary.Queue)
	for _, t := range s.Queue {
		fmt.Fprintf(w, "  #%d %-8s %-10s %s\n", t.ID, t.Priority, t.Status(), t.Sequence)
	}
	fmt.Fprintf(w, "Estimate:   %s (drains %s)\n",
		s.AllTasksEstimatedTime, describeETA(s.At, s.AllTasksEndTime))
	fmt.Fprintf(w, "Timing:     %dms/element, %dms maintenance every %d tasks\n",
		summary.Timing.ElementMS, summary.Timing.MaintenanceMS, summary.Timing.MaintenanceEvery)
	if summary.RunID != "" {
		fmt.Fprintf(w, "Journal run: %s\n", summary.RunID)
	}
	return nil
}
