package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/logging"
	"github.com/roach88/synth/internal/model"
)

func TestEngine_New_InitialConfiguration(t *testing.T) {
	e, _, rec := newTestEngine(t)

	snap := e.Snapshot()
	assert.Equal(t, ProductionIdle, snap.Production)
	assert.Equal(t, QueueWaiting, snap.QueueRegion)
	assert.Empty(t, snap.Queue)
	assert.Empty(t, snap.CompletedTasks)
	assert.Nil(t, snap.CurrentTask)
	assert.Equal(t, 1, snap.NextTaskID)
	assert.Equal(t, time.Duration(0), snap.AllTasksEstimatedTime)
	assert.Equal(t, epoch, snap.AllTasksEndTime)

	require.Len(t, rec.steps, 1)
	assert.Equal(t, TriggerStart, rec.steps[0].Trigger.Kind)
	assert.Equal(t, []Transition{{Region: RegionEstimator, From: EstimatorCalculateTime, To: EstimatorCalculateTime}}, rec.steps[0].Transitions)

	due, ok := e.NextTimer()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), due, "first estimator tick")
}

func TestEngine_New_PanicsOnInvalidTiming(t *testing.T) {
	timing := config.DefaultTiming()
	timing.TasksBeforeMaintenance = 0
	assert.Panics(t, func() {
		New(timing, NewVirtualClock(epoch), WithLogger(logging.Discard()))
	})
}

func TestEngine_CreateTask_StartsImmediately(t *testing.T) {
	e, _, rec := newTestEngine(t)

	outcome := dispatch(t, e, CreateTask(model.PriorityAverage, "atgcat"))
	assert.Equal(t, Accepted, outcome)

	snap := e.Snapshot()
	assert.Equal(t, 2, snap.NextTaskID)
	assert.Equal(t, ProductionElementSynthesis, snap.Production)
	require.NotNil(t, snap.CurrentTask)
	assert.Equal(t, 1, snap.CurrentTask.ID)
	assert.Equal(t, "ATGCAT", snap.CurrentTask.Sequence, "sequence is normalized")

	left, ok := snap.CurrentTask.ElementsLeft()
	require.True(t, ok)
	assert.Equal(t, 6, left)

	last := rec.steps[len(rec.steps)-1]
	assert.Equal(t, TriggerCommand, last.Trigger.Kind)
	assert.Equal(t, []Transition{
		{Region: RegionQueue, From: "waiting", To: "taskEnqueueing"},
		{Region: RegionQueue, From: "taskEnqueueing", To: "sortByPriorities"},
		{Region: RegionQueue, From: "sortByPriorities", To: "waiting"},
		{Region: RegionProduction, From: "idle", To: "busy.taskStarted"},
		{Region: RegionProduction, From: "busy.taskStarted", To: "busy.elementSynthesis"},
	}, last.Transitions)
}

func TestEngine_CreateTask_IDsNeverReused(t *testing.T) {
	e, _, _ := newTestEngine(t)
	occupy(t, e)

	for i := 0; i < 5; i++ {
		before := e.Snapshot().NextTaskID
		dispatch(t, e, CreateTask(model.PriorityLow, "A"))
		assert.Equal(t, before+1, e.Snapshot().NextTaskID)
	}

	dispatch(t, e, DeleteTask(6))
	dispatch(t, e, DestroyTask(6))
	dispatch(t, e, CreateTask(model.PriorityLow, "A"))

	snap := e.Snapshot()
	_, ok := snap.Task(7)
	assert.True(t, ok, "new task gets a fresh id after a destroy")
	assert.Equal(t, 8, snap.NextTaskID)
}

func TestEngine_Dispatch_InvalidPayload(t *testing.T) {
	e, _, rec := newTestEngine(t)
	steps := len(rec.steps)

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"priority zero", CreateTask(0, "ATGC"), model.ErrInvalidPriority},
		{"priority four", CreateTask(4, "ATGC"), model.ErrInvalidPriority},
		{"empty sequence", CreateTask(model.PriorityLow, "  "), model.ErrEmptySequence},
		{"bad symbol", CreateTask(model.PriorityLow, "ATGU"), model.ErrInvalidNucleotide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Dispatch(tt.cmd)
			require.Error(t, err)

			var cmdErr *CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, CmdCreateTask, cmdErr.Command)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.NextTaskID)
	assert.Empty(t, snap.Queue)
	assert.Len(t, rec.steps, steps, "failed commands emit no step")
}

func TestEngine_Dispatch_UnknownCommand(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Dispatch(Command{Type: "PAUSE"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestEngine_Dispatch_UnknownIDIsNotFound(t *testing.T) {
	e, _, rec := newTestEngine(t)
	occupy(t, e)
	before := e.Snapshot()
	steps := len(rec.steps)

	for _, cmd := range []Command{
		EditTask(42), EditCanceled(42), UpdateTask(42, model.PriorityLow, "A"),
		DeleteTask(42), DeleteCanceled(42), DestroyTask(42),
	} {
		_, err := e.Dispatch(cmd)
		require.Error(t, err, cmd.String())
		assert.True(t, IsNotFound(err), cmd.String())
		assert.True(t, IsInvariantError(err))

		var ie *InvariantError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, 42, ie.TaskID)
	}

	assert.Equal(t, before, e.Snapshot())
	assert.Len(t, rec.steps, steps)
}

func TestEngine_Dispatch_FiresDueTimersFirst(t *testing.T) {
	e, vc, rec := newTestEngine(t)
	dispatch(t, e, CreateTask(model.PriorityLow, "AA"))

	vc.Advance(2 * time.Second)
	dispatch(t, e, CreateTask(model.PriorityLow, "A"))

	snap := e.Snapshot()
	assert.Equal(t, []int{1}, snap.CompletedIDs(), "task 1 finished at 2s, before the command")

	completedAt, _ := snap.CompletedTasks[0].CompletedAt()
	assert.Equal(t, epoch.Add(2*time.Second), completedAt)

	for i := 1; i < len(rec.steps); i++ {
		assert.Greater(t, rec.steps[i].Seq, rec.steps[i-1].Seq)
		assert.False(t, rec.steps[i].At.Before(rec.steps[i-1].At), "step time must not go backwards")
	}
}

func TestEngine_Advance_RequiresVirtualClock(t *testing.T) {
	e := New(config.DefaultTiming(), WallClock{}, WithLogger(logging.Discard()))
	assert.ErrorIs(t, e.Advance(time.Second), ErrNotVirtual)
}

func TestEngine_Snapshot_IsDeepCopy(t *testing.T) {
	e, _, _ := newTestEngine(t)
	occupy(t, e)
	dispatch(t, e, CreateTask(model.PriorityCritical, "ATG"))

	snap := e.Snapshot()
	snap.Queue[1].Priority = model.PriorityLow
	snap.Queue[1].State = model.Editing{}
	snap.CurrentTask.Sequence = "G"

	fresh := e.Snapshot()
	assert.Equal(t, model.PriorityCritical, fresh.Queue[1].Priority)
	assert.Equal(t, model.StatusPending, fresh.Queue[1].Status())
	assert.Equal(t, seqOf(100), fresh.CurrentTask.Sequence)
}

func TestEngine_Run_LiveMode(t *testing.T) {
	timing := config.Timing{
		ElementSynthesis:       time.Millisecond,
		OnMaintenance:          time.Millisecond,
		EstimateInterval:       5 * time.Millisecond,
		TasksBeforeMaintenance: 2,
	}
	e := New(timing, WallClock{}, WithLogger(logging.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for i := 0; i < 3; i++ {
		require.True(t, e.Enqueue(CreateTask(model.PriorityAverage, "ATG")))
	}

	require.Eventually(t, func() bool {
		return len(e.Snapshot().CompletedTasks) == 3
	}, 5*time.Second, 5*time.Millisecond)

	snap := e.Snapshot()
	assert.Equal(t, []int{1, 2, 3}, snap.CompletedIDs())
	require.NoError(t, CheckInvariants(snap))

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, e.Enqueue(CreateTask(model.PriorityLow, "A")))
}

func TestEngine_Run_ContextCancel(t *testing.T) {
	e := New(config.DefaultTiming(), WallClock{}, WithLogger(logging.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEngine_Run_LogsFailedCommandsAndContinues(t *testing.T) {
	timing := config.DefaultTiming()
	timing.ElementSynthesis = time.Millisecond
	e := New(timing, WallClock{}, WithLogger(logging.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Enqueue(EditTask(99))
	e.Enqueue(CreateTask(model.PriorityLow, "A"))

	require.Eventually(t, func() bool {
		return len(e.Snapshot().CompletedTasks) == 1
	}, 5*time.Second, 5*time.Millisecond)

	e.Stop()
	<-done
}
