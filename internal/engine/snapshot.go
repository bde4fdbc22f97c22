package engine

import (
	"encoding/json"
	"time"

	"github.com/roach88/synth/internal/model"
)

// Snapshot is a deep copy of the shared context and region states.
type Snapshot struct {
	At          time.Time       `json:"at"`
	Production  ProductionState `json:"production"`
	QueueRegion QueueState      `json:"queue_region"`

	// Queue is in sorted order; the processing task, if any, is first.
	Queue               []model.Task `json:"queue"`
	CurrentTask         *model.Task  `json:"current_task,omitempty"`
	CompletedTasks      []model.Task `json:"completed_tasks"`
	NextTaskID          int          `json:"next_task_id"`
	TasksCompletedInRow int          `json:"tasks_completed_in_row"`

	AllTasksEstimatedTime time.Duration `json:"-"`
	AllTasksEndTime       time.Time     `json:"all_tasks_end_time"`
}

// MarshalJSON reports the estimate in milliseconds.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	return json.Marshal(struct {
		alias
		AllTasksEstimatedMS int64 `json:"all_tasks_estimated_ms"`
	}{
		alias:               alias(s),
		AllTasksEstimatedMS: s.AllTasksEstimatedTime.Milliseconds(),
	})
}

// Task returns the queued task with id.
func (s Snapshot) Task(id int) (model.Task, bool) {
	for _, t := range s.Queue {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Completed returns the archived task with id.
func (s Snapshot) Completed(id int) (model.Task, bool) {
	for _, t := range s.CompletedTasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// QueueIDs returns the queued task ids in order.
func (s Snapshot) QueueIDs() []int {
	ids := make([]int, len(s.Queue))
	for i, t := range s.Queue {
		ids[i] = t.ID
	}
	return ids
}

// CompletedIDs returns the archived task ids in completion order.
func (s Snapshot) CompletedIDs() []int {
	ids := make([]int, len(s.CompletedTasks))
	for i, t := range s.CompletedTasks {
		ids[i] = t.ID
	}
	return ids
}

// TriggerKind says what started a step.
type TriggerKind string

const (
	TriggerStart   TriggerKind = "start"
	TriggerCommand TriggerKind = "command"
	TriggerTimer   TriggerKind = "timer"
)

// Trigger describes the event a step processed.
type Trigger struct {
	Kind    TriggerKind `json:"kind"`
	Command *Command    `json:"command,omitempty"`
	Timer   string      `json:"timer,omitempty"`
}

func (t Trigger) String() string {
	switch t.Kind {
	case TriggerCommand:
		if t.Command != nil {
			return t.Command.String()
		}
	case TriggerTimer:
		return "timer:" + t.Timer
	}
	return string(t.Kind)
}

// Step is the record of one serialized dispatch.
type Step struct {
	Seq         int64        `json:"seq"`
	At          time.Time    `json:"at"`
	Trigger     Trigger      `json:"trigger"`
	Outcome     Outcome      `json:"-"`
	Transitions []Transition `json:"transitions"`
	Snapshot    Snapshot     `json:"snapshot"`
}

// MarshalJSON reports the outcome by name.
func (s Step) MarshalJSON() ([]byte, error) {
	type alias Step
	return json.Marshal(struct {
		alias
		Outcome string `json:"outcome"`
	}{
		alias:   alias(s),
		Outcome: s.Outcome.String(),
	})
}
