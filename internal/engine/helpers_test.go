package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/logging"
	"github.com/roach88/synth/internal/model"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// stepRecorder collects steps and checks invariants on each one.
type stepRecorder struct {
	t     *testing.T
	steps []Step
}

func (r *stepRecorder) observe(s Step) {
	r.steps = append(r.steps, s)
	if err := CheckInvariants(s.Snapshot); err != nil {
		r.t.Errorf("step %d (%s): %v", s.Seq, s.Trigger, err)
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *VirtualClock, *stepRecorder) {
	t.Helper()
	return newTestEngineWithTiming(t, config.DefaultTiming(), opts...)
}

func newTestEngineWithTiming(t *testing.T, timing config.Timing, opts ...Option) (*Engine, *VirtualClock, *stepRecorder) {
	t.Helper()
	vc := NewVirtualClock(epoch)
	rec := &stepRecorder{t: t}
	all := append([]Option{WithLogger(logging.Discard()), WithObserver(rec.observe)}, opts...)
	return New(timing, vc, all...), vc, rec
}

func dispatch(t *testing.T, e *Engine, cmd Command) Outcome {
	t.Helper()
	outcome, err := e.Dispatch(cmd)
	require.NoError(t, err, "dispatch %s", cmd)
	return outcome
}

func advance(t *testing.T, e *Engine, d time.Duration) Snapshot {
	t.Helper()
	require.NoError(t, e.Advance(d))
	return e.Snapshot()
}

func seqOf(n int) string {
	return strings.Repeat("A", n)
}

// occupy creates a long task so that tasks created afterwards stay pending.
func occupy(t *testing.T, e *Engine) int {
	t.Helper()
	dispatch(t, e, CreateTask(model.PriorityLow, seqOf(100)))
	snap := e.Snapshot()
	require.NotNil(t, snap.CurrentTask)
	return snap.CurrentTask.ID
}
