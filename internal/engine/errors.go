package engine

import (
	"errors"
	"fmt"
)

// InvariantError reports a broken engine invariant.
//
// Invariant errors are fatal for the step that raised them:
//   - Task not found: a command referenced an id that is not in the queue.
//     Dispatch returns the error and leaves the context untouched.
//   - No pending task / current task missing: raised from inside a production
//     transition. These are unreachable from any command sequence; the engine
//     panics with the error rather than continue from a corrupted context.
type InvariantError struct {
	// Code identifies the invariant.
	Code InvariantErrorCode

	// Message is a human-readable description.
	Message string

	// TaskID is the task involved, or 0.
	TaskID int
}

// InvariantErrorCode categorizes invariant errors.
type InvariantErrorCode string

const (
	// ErrCodeTaskNotFound indicates a command referenced an unknown task id.
	ErrCodeTaskNotFound InvariantErrorCode = "TASK_NOT_FOUND"

	// ErrCodeNoPendingTask indicates taskStarted found nothing to start.
	ErrCodeNoPendingTask InvariantErrorCode = "NO_PENDING_TASK"

	// ErrCodeCurrentTaskMissing indicates the processing task left the queue.
	ErrCodeCurrentTaskMissing InvariantErrorCode = "CURRENT_TASK_MISSING"

	// ErrCodeInvariantBroken is reported by CheckInvariants.
	ErrCodeInvariantBroken InvariantErrorCode = "INVARIANT_BROKEN"
)

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.TaskID != 0 {
		return fmt.Sprintf("%s: %s (task=%d)", e.Code, e.Message, e.TaskID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a TASK_NOT_FOUND invariant error.
func IsNotFound(err error) bool {
	var ie *InvariantError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeTaskNotFound
	}
	return false
}

// IsInvariantError reports whether err wraps an InvariantError.
func IsInvariantError(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}

func newNotFoundError(cmd CommandType, id int) *InvariantError {
	return &InvariantError{
		Code:    ErrCodeTaskNotFound,
		Message: fmt.Sprintf("%s references a task that is not in the queue", cmd),
		TaskID:  id,
	}
}

func brokenInvariant(format string, args ...any) *InvariantError {
	return &InvariantError{
		Code:    ErrCodeInvariantBroken,
		Message: fmt.Sprintf(format, args...),
	}
}

// CommandError reports a command whose payload could not be applied.
// The context is unchanged.
type CommandError struct {
	Command CommandType
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

var (
	// ErrUnknownCommand is wrapped by CommandError for unrecognized types.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrNotVirtual is returned by Advance when the engine reads the wall clock.
	ErrNotVirtual = errors.New("engine is not driven by a virtual clock")
)
