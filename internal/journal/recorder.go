package journal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/synth/internal/engine"
)

// Recorder journals every engine step of one run.
//
// Its Observe method is an engine.Observer. Observers run inside the
// engine's critical section, so writes land in seq order. A failed write
// is logged and remembered; later steps are still attempted.
type Recorder struct {
	ctx     context.Context
	journal *Journal
	runID   string
	logger  *slog.Logger

	mu      sync.Mutex
	written int
	err     error
}

// NewRecorder creates a recorder for an already-begun run.
func NewRecorder(ctx context.Context, j *Journal, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{ctx: ctx, journal: j, runID: runID, logger: logger}
}

// Observe writes one step.
func (r *Recorder) Observe(step engine.Step) {
	err := r.journal.WriteStep(r.ctx, r.runID, step)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Error("journal write failed",
			"run_id", r.runID,
			"seq", step.Seq,
			"error", err,
		)
		if r.err == nil {
			r.err = err
		}
		return
	}
	r.written++
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Written returns how many steps were journaled.
func (r *Recorder) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
