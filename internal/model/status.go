package model

import (
	"fmt"
	"time"
)

// Status names the lifecycle stage of a task.
type Status string

const (
	StatusPending              Status = "pending"
	StatusProcessing           Status = "processing"
	StatusEditing              Status = "editing"
	StatusDeletionConfirmation Status = "deletion_confirmation"
	StatusCompleted            Status = "completed"
)

// ValidStatuses lists every known status in lifecycle order.
var ValidStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusEditing,
	StatusDeletionConfirmation,
	StatusCompleted,
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// Valid reports whether s is one of ValidStatuses.
func (s Status) Valid() bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// State is the status variant a task currently carries.
//
// Only the variants declared in this package implement State, which keeps
// the set closed: a type switch over State covers every status.
type State interface {
	Status() Status
	stateMarker()
}

// Pending is a queued task waiting for the synthesizer.
type Pending struct{}

// Editing is a pending task held by an open edit.
type Editing struct{}

// DeletionConfirmation is a pending task held by an unconfirmed delete.
type DeletionConfirmation struct{}

// Processing is the task the synthesizer is working on.
type Processing struct {
	ElementsLeft int
}

// Completed is a terminal task moved to the archive.
type Completed struct {
	CompletedAt time.Time
}

func (Pending) Status() Status              { return StatusPending }
func (Editing) Status() Status              { return StatusEditing }
func (DeletionConfirmation) Status() Status { return StatusDeletionConfirmation }
func (Processing) Status() Status           { return StatusProcessing }
func (Completed) Status() Status            { return StatusCompleted }

func (Pending) stateMarker()              {}
func (Editing) stateMarker()              {}
func (DeletionConfirmation) stateMarker() {}
func (Processing) stateMarker()           {}
func (Completed) stateMarker()            {}

// CanTransition reports whether the task lifecycle permits from -> to.
//
//	pending -> editing | deletion_confirmation | processing
//	editing | deletion_confirmation -> pending
//	processing -> completed
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusEditing || to == StatusDeletionConfirmation || to == StatusProcessing
	case StatusEditing, StatusDeletionConfirmation:
		return to == StatusPending
	case StatusProcessing:
		return to == StatusCompleted
	default:
		return false
	}
}

// ValidateTransition returns an error when from -> to is not permitted.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
