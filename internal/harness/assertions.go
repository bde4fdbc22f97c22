package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/model"
)

// AssertionContext provides what state assertions need.
type AssertionContext struct {
	// Start is the virtual time the scenario began at; offsets are from it.
	Start time.Time

	// Final is the snapshot after the last step.
	Final engine.Snapshot
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for context; only set by trace assertions
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] +%dms %s\n", i+1, event.OffsetMS, event.Trigger)
			for _, t := range event.Transitions {
				fmt.Fprintf(&buf, "        %s\n", t)
			}
		}
	}

	return buf.String()
}

// EvaluateAssertions runs all assertions and returns their failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result.Trace, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertQueueOrder:
		return assertIDs(a.Type, a.IDs, actx.Final.QueueIDs())
	case AssertCompletedOrder:
		return assertIDs(a.Type, a.IDs, actx.Final.CompletedIDs())
	case AssertProductionState:
		return assertEqual(a.Type, a.State, string(actx.Final.Production))
	case AssertQueueState:
		return assertEqual(a.Type, a.State, string(actx.Final.QueueRegion))
	case AssertTaskStatus:
		return assertTaskStatus(a, actx.Final)
	case AssertStreak:
		return assertEqual(a.Type, fmt.Sprint(*a.Count), fmt.Sprint(actx.Final.TasksCompletedInRow))
	case AssertEstimate:
		return assertEstimate(a, actx)
	case AssertTaskEnd:
		return assertTaskEnd(a, actx)
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertIDs(kind string, want, got []int) error {
	if slices.Equal(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprint(want),
		Actual:   fmt.Sprint(got),
	}
}

func assertEqual(kind, want, got string) error {
	if want == got {
		return nil
	}
	return &AssertionError{Type: kind, Expected: want, Actual: got}
}

func assertTaskStatus(a Assertion, s engine.Snapshot) error {
	task, ok := findTask(s, a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertTaskStatus,
			Expected: fmt.Sprintf("task %d %s", a.ID, a.Status),
			Actual:   fmt.Sprintf("task %d not found", a.ID),
		}
	}
	if task.Status() != model.Status(a.Status) {
		return &AssertionError{
			Type:     AssertTaskStatus,
			Expected: fmt.Sprintf("task %d %s", a.ID, a.Status),
			Actual:   fmt.Sprintf("task %d %s", a.ID, task.Status()),
		}
	}
	if a.ElementsLeft != nil {
		left, _ := task.ElementsLeft()
		if left != *a.ElementsLeft {
			return &AssertionError{
				Type:     AssertTaskStatus,
				Expected: fmt.Sprintf("task %d with %d elements left", a.ID, *a.ElementsLeft),
				Actual:   fmt.Sprintf("task %d with %d elements left", a.ID, left),
			}
		}
	}
	return nil
}

func assertEstimate(a Assertion, actx *AssertionContext) error {
	if a.MS != nil {
		got := actx.Final.AllTasksEstimatedTime.Milliseconds()
		if got != *a.MS {
			return &AssertionError{
				Type:     AssertEstimate,
				Expected: fmt.Sprintf("estimate %dms", *a.MS),
				Actual:   fmt.Sprintf("estimate %dms", got),
			}
		}
	}
	if a.EndMS != nil {
		got := offsetMS(actx.Final.AllTasksEndTime, actx.Start)
		if got != *a.EndMS {
			return &AssertionError{
				Type:     AssertEstimate,
				Expected: fmt.Sprintf("end at +%dms", *a.EndMS),
				Actual:   fmt.Sprintf("end at +%dms", got),
			}
		}
	}
	return nil
}

func assertTaskEnd(a Assertion, actx *AssertionContext) error {
	task, ok := actx.Final.Task(a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertTaskEnd,
			Expected: fmt.Sprintf("queued task %d", a.ID),
			Actual:   "not queued",
		}
	}
	if task.EndTime.IsZero() {
		return &AssertionError{
			Type:     AssertTaskEnd,
			Expected: fmt.Sprintf("task %d ends at +%dms", a.ID, *a.MS),
			Actual:   "no projected end",
		}
	}
	if got := offsetMS(task.EndTime, actx.Start); got != *a.MS {
		return &AssertionError{
			Type:     AssertTaskEnd,
			Expected: fmt.Sprintf("task %d ends at +%dms", a.ID, *a.MS),
			Actual:   fmt.Sprintf("task %d ends at +%dms", a.ID, got),
		}
	}
	return nil
}

// assertTraceContains checks that some step recorded the transition.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want := normalizeTransition(a.Transition)
	for _, event := range trace {
		if slices.Contains(event.Transitions, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("transition %q", want),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that transitions first appear in the given order.
// They don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	pos := 0
	for _, event := range trace {
		for _, t := range event.Transitions {
			pos++
			if _, seen := positions[t]; !seen {
				positions[t] = pos
			}
		}
	}

	want := make([]string, len(a.Transitions))
	for i, t := range a.Transitions {
		want[i] = normalizeTransition(t)
		if positions[want[i]] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all transitions present: %q", a.Transitions),
				Actual:   fmt.Sprintf("missing transition: %s", want[i]),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(want); i++ {
		prev, curr := want[i-1], want[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("transitions in order: %q", want),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks how many steps had a matching trigger.
// "CREATE_TASK" matches every CREATE_TASK(...) step.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Trigger == a.Trigger || strings.HasPrefix(event.Trigger, a.Trigger+"(") {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", a.Trigger, *a.Count),
			Actual:   fmt.Sprintf("appears %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// normalizeTransition collapses whitespace so "production:idle->x" and
// "production: idle -> x" compare equal.
func normalizeTransition(s string) string {
	region, rest, ok := strings.Cut(s, ":")
	if !ok {
		return strings.TrimSpace(s)
	}
	from, to, ok := strings.Cut(rest, "->")
	if !ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%s: %s -> %s",
		strings.TrimSpace(region), strings.TrimSpace(from), strings.TrimSpace(to))
}
