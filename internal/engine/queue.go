package engine

import (
	"cmp"
	"slices"
	"time"

	"github.com/roach88/synth/internal/model"
)

// applyCommand routes cmd through the queue region.
//
// Validation (lookup, payload) happens before any mutation, so an error
// leaves the context untouched.
func (e *Engine) applyCommand(cmd Command) (Outcome, error) {
	switch cmd.Type {
	case CmdCreateTask:
		return e.createTask(cmd)
	case CmdEditTask:
		return e.guarded(cmd, model.StatusPending, QueueTaskEditing, model.Editing{}, true)
	case CmdEditCanceled:
		return e.guarded(cmd, model.StatusEditing, QueueTaskEditing, model.Pending{}, true)
	case CmdUpdateTask:
		return e.updateTask(cmd)
	case CmdDeleteTask:
		return e.guarded(cmd, model.StatusPending, QueueTaskDeleting, model.DeletionConfirmation{}, false)
	case CmdDeleteCanceled:
		return e.guarded(cmd, model.StatusDeletionConfirmation, QueueTaskDeleting, model.Pending{}, true)
	case CmdDestroyTask:
		return e.destroyTask(cmd)
	default:
		return 0, &CommandError{Command: cmd.Type, Err: ErrUnknownCommand}
	}
}

// createTask is waiting -> taskEnqueueing -> sortByPriorities -> waiting.
func (e *Engine) createTask(cmd Command) (Outcome, error) {
	seq := model.NormalizeSequence(cmd.Sequence)
	if err := model.ValidatePayload(cmd.Priority, seq); err != nil {
		return 0, &CommandError{Command: cmd.Type, Err: err}
	}

	e.enterQueue(QueueTaskEnqueueing)

	id := e.nextID
	e.nextID++
	task := model.NewTask(id, cmd.Priority, seq, e.at)
	e.tasks[id] = &task
	e.order = append(e.order, id)

	e.logger.Debug("task enqueued",
		"task_id", id,
		"priority", cmd.Priority,
		"length", task.Length(),
	)

	e.sortByPriorities()
	return Accepted, nil
}

// updateTask overwrites the payload of a task under edit.
func (e *Engine) updateTask(cmd Command) (Outcome, error) {
	task, err := e.lookup(cmd)
	if err != nil {
		return 0, err
	}
	if task.Status() != model.StatusEditing {
		return Rejected, nil
	}
	seq := model.NormalizeSequence(cmd.Sequence)
	if err := model.ValidatePayload(cmd.Priority, seq); err != nil {
		return 0, &CommandError{Command: cmd.Type, Err: err}
	}

	e.enterQueue(QueueTaskEditing)
	task.Priority = cmd.Priority
	task.Sequence = seq
	task.EndTime = time.Time{}
	e.setState(task, model.Pending{})
	e.sortByPriorities()
	return Accepted, nil
}

// destroyTask removes a task awaiting delete confirmation. Removal cannot
// break the order, so there is no sort.
func (e *Engine) destroyTask(cmd Command) (Outcome, error) {
	task, err := e.lookup(cmd)
	if err != nil {
		return 0, err
	}
	if task.Status() != model.StatusDeletionConfirmation {
		return Rejected, nil
	}

	e.enterQueue(QueueTaskDeleting)
	idx := e.indexOf(task.ID)
	e.order = slices.Delete(e.order, idx, idx+1)
	delete(e.tasks, task.ID)
	e.logger.Debug("task destroyed", "task_id", task.ID)
	e.enterQueue(QueueWaiting)
	return Accepted, nil
}

// guarded applies a status-only command: the task must currently be in
// want, and moves to next via the queue state via.
func (e *Engine) guarded(cmd Command, want model.Status, via QueueState, next model.State, sort bool) (Outcome, error) {
	task, err := e.lookup(cmd)
	if err != nil {
		return 0, err
	}
	if task.Status() != want {
		return Rejected, nil
	}

	e.enterQueue(via)
	e.setState(task, next)
	if sort {
		e.sortByPriorities()
		return Accepted, nil
	}
	e.enterQueue(QueueWaiting)
	return Accepted, nil
}

// setState moves task along its lifecycle. A held or completed task carries
// no projected end time.
func (e *Engine) setState(task *model.Task, next model.State) {
	if err := model.ValidateTransition(task.Status(), next.Status()); err != nil {
		ie := brokenInvariant("%v", err)
		ie.TaskID = task.ID
		panic(ie)
	}
	task.State = next

	switch next.(type) {
	case model.Pending, model.Processing:
	default:
		task.EndTime = time.Time{}
	}
}

func (e *Engine) lookup(cmd Command) (*model.Task, error) {
	task, ok := e.tasks[cmd.ID]
	if !ok {
		return nil, newNotFoundError(cmd.Type, cmd.ID)
	}
	return task, nil
}

func (e *Engine) enterQueue(to QueueState) {
	e.enter(RegionQueue, string(e.queueState), string(to))
	e.queueState = to
}

// sortByPriorities is the sort state followed by the return to waiting.
func (e *Engine) sortByPriorities() {
	e.enterQueue(QueueSortByPriorities)
	e.sortQueue()
	e.enterQueue(QueueWaiting)
}

// sortQueue orders the queue: processing first, then priority descending,
// then id ascending. Ids are allocated in creation order, so ties keep
// insertion order and the sort is idempotent.
func (e *Engine) sortQueue() {
	slices.SortStableFunc(e.order, func(a, b int) int {
		return compareTasks(e.tasks[a], e.tasks[b])
	})
}

func compareTasks(a, b *model.Task) int {
	ap := a.Status() == model.StatusProcessing
	bp := b.Status() == model.StatusProcessing
	if ap != bp {
		if ap {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
