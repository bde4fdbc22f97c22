package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/synth/internal/model"
)

// hasPending reports whether any queued task can be started.
func (e *Engine) hasPending() bool {
	_, ok := e.firstPending()
	return ok
}

// firstPending returns the first pending task in queue order. By the sort
// invariant this is the highest-priority, earliest-created pending task.
func (e *Engine) firstPending() (int, bool) {
	for _, id := range e.order {
		if e.tasks[id].Status() == model.StatusPending {
			return id, true
		}
	}
	return 0, false
}

// startTask is idle -> busy.taskStarted -> busy.elementSynthesis.
func (e *Engine) startTask() {
	e.enter(RegionProduction, string(e.production), string(ProductionTaskStarted))
	e.production = ProductionTaskStarted

	id, ok := e.firstPending()
	if !ok {
		panic(&InvariantError{
			Code:    ErrCodeNoPendingTask,
			Message: "taskStarted entered with no pending task in the queue",
		})
	}

	task := e.tasks[id]
	e.setState(task, model.Processing{ElementsLeft: task.Length()})
	e.current = id
	e.sortQueue()

	e.logger.Info("task started",
		"task_id", id,
		"priority", task.Priority,
		"length", task.Length(),
		"at", e.at,
	)

	e.enter(RegionProduction, string(ProductionTaskStarted), string(ProductionElementSynthesis))
	e.production = ProductionElementSynthesis
	e.schedule(timerElementTick, e.timing.ElementSynthesis)
}

// elementTick consumes one element of the current task. While elements
// remain it re-enters elementSynthesis; the last element completes the task.
func (e *Engine) elementTick() {
	task := e.currentTask()

	p, ok := task.State.(model.Processing)
	if !ok {
		panic(brokenInvariant("current task %d is %s, not processing", task.ID, task.Status()))
	}
	p.ElementsLeft--
	task.State = p

	if p.ElementsLeft > 0 {
		e.enter(RegionProduction, string(ProductionElementSynthesis), string(ProductionElementSynthesis))
		e.schedule(timerElementTick, e.timing.ElementSynthesis)
		return
	}

	e.completeTask(task)
}

// completeTask is busy.taskCompleted: archive the task, then either hold
// for maintenance or go back to idle.
func (e *Engine) completeTask(task *model.Task) {
	e.enter(RegionProduction, string(ProductionElementSynthesis), string(ProductionTaskCompleted))
	e.production = ProductionTaskCompleted

	idx := e.indexOf(task.ID)
	if idx < 0 {
		panic(&InvariantError{
			Code:    ErrCodeCurrentTaskMissing,
			Message: "completed task is no longer in the queue",
			TaskID:  task.ID,
		})
	}

	e.setState(task, model.Completed{CompletedAt: e.at})
	e.order = slices.Delete(e.order, idx, idx+1)
	delete(e.tasks, task.ID)
	e.completed = append(e.completed, *task)
	e.inRow++
	e.current = 0

	e.logger.Info("task completed",
		"task_id", task.ID,
		"completed_in_row", e.inRow,
		"at", e.at,
	)

	if e.inRow >= e.timing.TasksBeforeMaintenance {
		e.enter(RegionProduction, string(ProductionTaskCompleted), string(ProductionOnMaintenance))
		e.production = ProductionOnMaintenance
		e.schedule(timerMaintenanceHold, e.timing.OnMaintenance)
		e.logger.Info("maintenance started",
			"completed_in_row", e.inRow,
			"duration", e.timing.OnMaintenance,
			"at", e.at,
		)
		return
	}

	e.enter(RegionProduction, string(ProductionTaskCompleted), string(ProductionIdle))
	e.production = ProductionIdle
}

// endMaintenance is onMaintenance -> idle; the streak resets on exit.
func (e *Engine) endMaintenance() {
	if e.production != ProductionOnMaintenance {
		panic(brokenInvariant("maintenance hold fired in state %s", e.production))
	}
	e.inRow = 0
	e.enter(RegionProduction, string(ProductionOnMaintenance), string(ProductionIdle))
	e.production = ProductionIdle
	e.logger.Info("maintenance finished", "at", e.at)
}

// currentTask resolves the processing task by id.
func (e *Engine) currentTask() *model.Task {
	if e.current == 0 {
		panic(brokenInvariant("element tick with no current task"))
	}
	task, ok := e.tasks[e.current]
	if !ok {
		panic(&InvariantError{
			Code:    ErrCodeCurrentTaskMissing,
			Message: fmt.Sprintf("current task %d is not in the queue", e.current),
			TaskID:  e.current,
		})
	}
	return task
}
