package model

import (
	"encoding/json"
	"time"
)

// Task is a unit of schedulable work.
//
// Fields that only exist in one lifecycle stage are carried by State.
// Use the accessors (ElementsLeft, CompletedAt) rather than type-switching
// at every call site.
type Task struct {
	ID        int
	Priority  Priority
	Sequence  string
	CreatedAt time.Time
	// EndTime is the projected completion time; zero until estimated.
	EndTime time.Time
	State   State
}

// NewTask returns a pending task. The payload is not validated here.
func NewTask(id int, p Priority, sequence string, createdAt time.Time) Task {
	return Task{
		ID:        id,
		Priority:  p,
		Sequence:  sequence,
		CreatedAt: createdAt,
		State:     Pending{},
	}
}

// Status returns the status of the current State variant.
func (t Task) Status() Status {
	if t.State == nil {
		return StatusPending
	}
	return t.State.Status()
}

// Length is the number of elements in the sequence.
func (t Task) Length() int {
	return len(t.Sequence)
}

// ElementsLeft reports the remaining elements of a processing task.
func (t Task) ElementsLeft() (int, bool) {
	p, ok := t.State.(Processing)
	if !ok {
		return 0, false
	}
	return p.ElementsLeft, true
}

// CompletedAt reports when a completed task finished.
func (t Task) CompletedAt() (time.Time, bool) {
	c, ok := t.State.(Completed)
	if !ok {
		return time.Time{}, false
	}
	return c.CompletedAt, true
}

// RemainingWork is the number of elements still to synthesize:
// ElementsLeft while processing, Length while waiting, 0 once completed.
func (t Task) RemainingWork() int {
	switch s := t.State.(type) {
	case Processing:
		return s.ElementsLeft
	case Completed:
		return 0
	default:
		return t.Length()
	}
}

// taskJSON is the wire shape of a task. Optional fields follow the status.
type taskJSON struct {
	ID           int        `json:"id"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	Sequence     string     `json:"sequence"`
	Length       *int       `json:"length,omitempty"`
	ElementsLeft *int       `json:"elements_left,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	EndTime      *time.Time `json:"task_end_time,omitempty"`
}

// MarshalJSON emits length only for non-terminal tasks, elements_left only
// while processing and completed_at only once completed.
func (t Task) MarshalJSON() ([]byte, error) {
	out := taskJSON{
		ID:        t.ID,
		Status:    t.Status(),
		Priority:  t.Priority,
		Sequence:  t.Sequence,
		CreatedAt: t.CreatedAt,
	}
	if !t.Status().IsTerminal() {
		n := t.Length()
		out.Length = &n
	}
	if n, ok := t.ElementsLeft(); ok {
		out.ElementsLeft = &n
	}
	if at, ok := t.CompletedAt(); ok {
		out.CompletedAt = &at
	}
	if !t.EndTime.IsZero() {
		end := t.EndTime
		out.EndTime = &end
	}
	return json.Marshal(out)
}
