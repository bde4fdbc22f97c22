package engine

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/generator"
	"github.com/roach88/synth/internal/model"
)

func validSnapshot() Snapshot {
	cur := model.NewTask(1, model.PriorityLow, "AAA", epoch)
	cur.State = model.Processing{ElementsLeft: 2}
	next := model.NewTask(2, model.PriorityCritical, "A", epoch)
	done := model.NewTask(3, model.PriorityAverage, "A", epoch)
	done.State = model.Completed{CompletedAt: epoch.Add(time.Second)}

	return Snapshot{
		Production:     ProductionElementSynthesis,
		QueueRegion:    QueueWaiting,
		Queue:          []model.Task{cur, next},
		CurrentTask:    &cur,
		CompletedTasks: []model.Task{done},
		NextTaskID:     4,
	}
}

func TestCheckInvariants_Valid(t *testing.T) {
	assert.NoError(t, CheckInvariants(validSnapshot()))
}

func TestCheckInvariants_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Snapshot)
	}{
		{"two processing", func(s *Snapshot) {
			s.Queue[1].State = model.Processing{ElementsLeft: 1}
		}},
		{"processing not first", func(s *Snapshot) {
			s.Queue[0], s.Queue[1] = s.Queue[1], s.Queue[0]
		}},
		{"current without processing", func(s *Snapshot) {
			s.Queue[0].State = model.Pending{}
		}},
		{"processing without current", func(s *Snapshot) {
			s.CurrentTask = nil
		}},
		{"priority order", func(s *Snapshot) {
			extra := model.NewTask(3, model.PriorityCritical, "A", epoch)
			s.Queue[1].Priority = model.PriorityLow
			s.Queue = append(s.Queue, extra)
			s.CompletedTasks = nil
		}},
		{"completed in queue", func(s *Snapshot) {
			s.Queue[1].State = model.Completed{CompletedAt: epoch}
		}},
		{"elements left exceed length", func(s *Snapshot) {
			s.Queue[0].State = model.Processing{ElementsLeft: 9}
		}},
		{"id not allocated", func(s *Snapshot) {
			s.NextTaskID = 2
		}},
		{"archived twice", func(s *Snapshot) {
			s.CompletedTasks = append(s.CompletedTasks, s.CompletedTasks[0])
		}},
		{"archived not completed", func(s *Snapshot) {
			s.CompletedTasks[0].State = model.Pending{}
		}},
		{"processing while idle", func(s *Snapshot) {
			s.Production = ProductionIdle
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSnapshot()
			tt.mutate(&s)

			err := CheckInvariants(s)
			require.Error(t, err)
			var ie *InvariantError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, ErrCodeInvariantBroken, ie.Code)
		})
	}
}

// TestEngine_RandomCommandSequences drives the engine with random commands
// and clock advances. Invariants are checked after every step by the
// recorder, and no production invariant panic may surface.
func TestEngine_RandomCommandSequences(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed))
		gen := generator.NewSeeded(seed, generator.WithLengthRange(1, 5))
		e, _, rec := newTestEngine(t)

		destroyed := make(map[int]bool)
		require.NotPanics(t, func() {
			for i := 0; i < 300; i++ {
				snap := e.Snapshot()
				maxID := snap.NextTaskID
				id := 1 + rng.IntN(maxID)

				var cmd Command
				switch rng.IntN(8) {
				case 0, 1:
					p := gen.Next()
					cmd = CreateTask(p.Priority, p.Sequence)
				case 2:
					cmd = EditTask(id)
				case 3:
					cmd = EditCanceled(id)
				case 4:
					p := gen.Next()
					cmd = UpdateTask(id, p.Priority, p.Sequence)
				case 5:
					cmd = DeleteTask(id)
				case 6:
					cmd = DeleteCanceled(id)
				case 7:
					cmd = DestroyTask(id)
				}

				outcome, err := e.Dispatch(cmd)
				if err != nil {
					require.True(t, IsNotFound(err), "seed %d: %v", seed, err)
					_, queued := snap.Task(id)
					require.False(t, queued, "seed %d: not-found for queued task %d", seed, id)
				}

				after := e.Snapshot()
				if cmd.Type == CmdCreateTask {
					require.Equal(t, snap.NextTaskID+1, after.NextTaskID)
				} else {
					require.Equal(t, snap.NextTaskID, after.NextTaskID)
				}
				if cmd.Type == CmdDestroyTask && outcome == Accepted {
					destroyed[id] = true
				}

				require.NoError(t, e.Advance(time.Duration(rng.IntN(3000))*time.Millisecond))
			}
		}, "seed %d", seed)

		final := advance(t, e, time.Hour)
		for _, task := range final.Queue {
			assert.NotEqual(t, model.StatusPending, task.Status(), "seed %d: pending task left behind", seed)
		}
		seen := make(map[int]bool)
		for _, task := range final.CompletedTasks {
			assert.False(t, seen[task.ID], "seed %d: task %d archived twice", seed, task.ID)
			assert.False(t, destroyed[task.ID], "seed %d: destroyed task %d completed", seed, task.ID)
			seen[task.ID] = true
		}
		assert.NotEmpty(t, rec.steps)
	}
}
