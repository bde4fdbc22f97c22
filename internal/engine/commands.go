package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/synth/internal/model"
)

// CommandType names an external command accepted by the queue region.
type CommandType string

const (
	CmdCreateTask     CommandType = "CREATE_TASK"
	CmdEditTask       CommandType = "EDIT_TASK"
	CmdEditCanceled   CommandType = "EDIT_CANCELED"
	CmdUpdateTask     CommandType = "UPDATE_TASK"
	CmdDeleteTask     CommandType = "DELETE_TASK"
	CmdDeleteCanceled CommandType = "DELETE_CANCELED"
	CmdDestroyTask    CommandType = "DESTROY_TASK"
)

// CommandTypes lists every command in table order.
var CommandTypes = []CommandType{
	CmdCreateTask,
	CmdEditTask,
	CmdEditCanceled,
	CmdUpdateTask,
	CmdDeleteTask,
	CmdDeleteCanceled,
	CmdDestroyTask,
}

// ParseCommandType accepts the canonical name in any case, with '-' or '_'.
func ParseCommandType(s string) (CommandType, error) {
	norm := CommandType(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	for _, ct := range CommandTypes {
		if ct == norm {
			return ct, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// Command is an external request to mutate the queue.
//
// Payload fields are used per type:
//
//	CREATE_TASK   Priority, Sequence
//	UPDATE_TASK   ID, Priority, Sequence
//	others        ID
type Command struct {
	Type     CommandType    `json:"type" yaml:"type"`
	ID       int            `json:"id,omitempty" yaml:"id,omitempty"`
	Priority model.Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	Sequence string         `json:"sequence,omitempty" yaml:"sequence,omitempty"`
}

func (c Command) String() string {
	switch c.Type {
	case CmdCreateTask:
		return fmt.Sprintf("%s(priority=%d, sequence=%s)", c.Type, c.Priority, c.Sequence)
	case CmdUpdateTask:
		return fmt.Sprintf("%s(id=%d, priority=%d, sequence=%s)", c.Type, c.ID, c.Priority, c.Sequence)
	default:
		return fmt.Sprintf("%s(id=%d)", c.Type, c.ID)
	}
}

// CreateTask builds a CREATE_TASK command.
func CreateTask(p model.Priority, sequence string) Command {
	return Command{Type: CmdCreateTask, Priority: p, Sequence: sequence}
}

// EditTask builds an EDIT_TASK command.
func EditTask(id int) Command {
	return Command{Type: CmdEditTask, ID: id}
}

// EditCanceled builds an EDIT_CANCELED command.
func EditCanceled(id int) Command {
	return Command{Type: CmdEditCanceled, ID: id}
}

// UpdateTask builds an UPDATE_TASK command.
func UpdateTask(id int, p model.Priority, sequence string) Command {
	return Command{Type: CmdUpdateTask, ID: id, Priority: p, Sequence: sequence}
}

// DeleteTask builds a DELETE_TASK command.
func DeleteTask(id int) Command {
	return Command{Type: CmdDeleteTask, ID: id}
}

// DeleteCanceled builds a DELETE_CANCELED command.
func DeleteCanceled(id int) Command {
	return Command{Type: CmdDeleteCanceled, ID: id}
}

// DestroyTask builds a DESTROY_TASK command.
func DestroyTask(id int) Command {
	return Command{Type: CmdDestroyTask, ID: id}
}

// Outcome is the result of a command that did not fail.
type Outcome int

const (
	// Accepted means the command changed the context.
	Accepted Outcome = iota + 1
	// Rejected means a guard refused the command; the context is unchanged.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}
