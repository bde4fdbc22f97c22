package engine

import (
	"slices"

	"github.com/roach88/synth/internal/model"
)

// CheckInvariants verifies a snapshot against the context invariants.
// It returns the first violation as an INVARIANT_BROKEN InvariantError.
func CheckInvariants(s Snapshot) error {
	processing := 0
	seen := make(map[int]bool, len(s.Queue)+len(s.CompletedTasks))

	for i, t := range s.Queue {
		if seen[t.ID] {
			return brokenInvariant("task %d appears twice in the queue", t.ID)
		}
		seen[t.ID] = true

		if t.ID <= 0 || t.ID >= s.NextTaskID {
			return brokenInvariant("task id %d outside allocated range [1,%d)", t.ID, s.NextTaskID)
		}

		switch st := t.State.(type) {
		case model.Processing:
			processing++
			if st.ElementsLeft <= 0 || st.ElementsLeft > t.Length() {
				return brokenInvariant("task %d has %d elements left of %d", t.ID, st.ElementsLeft, t.Length())
			}
			if i != 0 {
				return brokenInvariant("processing task %d is at position %d", t.ID, i)
			}
		case model.Completed:
			return brokenInvariant("completed task %d is still queued", t.ID)
		case nil:
			return brokenInvariant("task %d has no state", t.ID)
		}

		if i > 0 {
			prev := s.Queue[i-1]
			if compareTasks(&prev, &t) > 0 {
				return brokenInvariant("queue out of order at position %d (task %d before %d)", i, prev.ID, t.ID)
			}
		}
	}

	if processing > 1 {
		return brokenInvariant("%d tasks are processing", processing)
	}
	if (processing == 1) != (s.CurrentTask != nil) {
		return brokenInvariant("current task defined=%t with %d processing", s.CurrentTask != nil, processing)
	}
	if s.CurrentTask != nil && s.CurrentTask.ID != s.Queue[0].ID {
		return brokenInvariant("current task %d is not the processing task %d", s.CurrentTask.ID, s.Queue[0].ID)
	}
	if processing == 1 && !s.Production.Busy() {
		return brokenInvariant("task processing while production is %s", s.Production)
	}

	for _, t := range s.CompletedTasks {
		if seen[t.ID] {
			return brokenInvariant("completed task %d is also queued or archived twice", t.ID)
		}
		seen[t.ID] = true
		if _, ok := t.State.(model.Completed); !ok {
			return brokenInvariant("archived task %d is %s", t.ID, t.Status())
		}
	}

	if s.TasksCompletedInRow < 0 || s.TasksCompletedInRow > len(s.CompletedTasks) {
		return brokenInvariant("streak %d with %d completed tasks", s.TasksCompletedInRow, len(s.CompletedTasks))
	}

	completedAt := make([]int64, len(s.CompletedTasks))
	for i, t := range s.CompletedTasks {
		at, _ := t.CompletedAt()
		completedAt[i] = at.UnixNano()
	}
	if !slices.IsSorted(completedAt) {
		return brokenInvariant("completed tasks are not in completion order")
	}

	return nil
}
