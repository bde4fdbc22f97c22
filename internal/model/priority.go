package model

import "fmt"

// Priority orders tasks in the queue; higher values are served first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityAverage  Priority = 2
	PriorityCritical Priority = 3
)

// Valid reports whether p is Low, Average or Critical.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// String returns the display name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityAverage:
		return "average"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts either the numeric form or the display name.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "1", "low":
		return PriorityLow, nil
	case "2", "average":
		return PriorityAverage, nil
	case "3", "critical":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}
