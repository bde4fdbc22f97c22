package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/journal"
	"github.com/roach88/synth/internal/logging"
	"github.com/roach88/synth/internal/model"
	"github.com/roach88/synth/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	engine   *engine.Engine
	clock    *engine.VirtualClock
	journal  *journal.Journal
	recorder *journal.Recorder
	logger   *slog.Logger
	result   *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a virtual clock starting at testutil.Epoch, with
// every step journaled to a fresh in-memory database. The trace used by
// assertions and golden files is read back from that journal.
//
// Execution flow:
// 1. Create fresh in-memory journal and begin a run
// 2. Create the engine on a virtual clock
// 3. Execute steps, checking each command result and every step's invariants
// 4. Read the trace back and evaluate assertions
//
// A non-nil error means the scenario could not be executed; assertion
// failures are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, logging.Discard())
}

// RunWithLogger is Run with engine logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (result *Result, err error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	ctx := context.Background()
	timing := scenario.Timing.Apply(config.DefaultTiming())
	runID := testutil.NewFixedRunIDGenerator(scenario.RunID).Generate()

	if err := j.BeginRun(ctx, journal.Run{
		ID:        runID,
		StartedAt: testutil.Epoch,
		Mode:      journal.ModeScenario,
		Timing:    timing,
	}); err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	h := &Harness{
		clock:    engine.NewVirtualClock(testutil.Epoch),
		journal:  j,
		recorder: journal.NewRecorder(ctx, j, runID, logger),
		logger:   logger,
		result:   NewResult(),
	}
	h.result.RunID = runID

	// Invariant violations inside the engine surface as panics; report them
	// as execution errors rather than crashing the runner.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	h.engine = engine.New(timing, h.clock,
		engine.WithLogger(logger),
		engine.WithObserver(h.recorder.Observe),
		engine.WithObserver(h.checkInvariants),
	)

	if err := h.executeSteps(scenario.Steps); err != nil {
		return nil, err
	}

	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	steps, err := j.ReadSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	h.result.Trace = TraceFromSteps(steps, testutil.Epoch)
	h.result.Final = h.engine.Snapshot()

	actx := &AssertionContext{Start: testutil.Epoch, Final: h.result.Final}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

// checkInvariants is an engine observer.
func (h *Harness) checkInvariants(step engine.Step) {
	if err := engine.CheckInvariants(step.Snapshot); err != nil {
		h.result.AddError(fmt.Sprintf("step %d (%s): %v", step.Seq, step.Trigger, err))
	}
}

// executeSteps runs every step in order.
func (h *Harness) executeSteps(steps []Step) error {
	for i, step := range steps {
		if step.IsAdvance() {
			d, err := step.Duration()
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if err := h.engine.Advance(d); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			h.logger.Debug("scenario advanced", "step", i, "by", d, "now", h.clock.Now())
			continue
		}

		cmd, err := step.ToCommand()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		outcome, dispatchErr := h.engine.Dispatch(cmd)
		got := classify(outcome, dispatchErr)
		if want := step.ExpectedResult(); got != want {
			msg := fmt.Sprintf("step %d: %s: expected %s, got %s", i, cmd, want, got)
			if dispatchErr != nil {
				msg += fmt.Sprintf(" (%v)", dispatchErr)
			}
			h.result.AddError(msg)
		}

		h.logger.Debug("scenario command",
			"step", i,
			"command", cmd.String(),
			"result", got,
		)
	}
	return nil
}

// classify maps a dispatch result onto the scenario expect vocabulary.
func classify(outcome engine.Outcome, err error) string {
	var cmdErr *engine.CommandError
	switch {
	case err == nil && outcome == engine.Accepted:
		return ExpectAccepted
	case err == nil:
		return ExpectRejected
	case engine.IsNotFound(err):
		return ExpectNotFound
	case errors.As(err, &cmdErr):
		return ExpectInvalid
	default:
		return "error"
	}
}

// offsetMS returns t relative to start in milliseconds.
func offsetMS(t, start time.Time) int64 {
	return t.Sub(start).Milliseconds()
}

// findTask looks a task up in the queue, then in the archive.
func findTask(s engine.Snapshot, id int) (model.Task, bool) {
	if t, ok := s.Task(id); ok {
		return t, true
	}
	return s.Completed(id)
}
