package harness

import (
	"fmt"
	"io"
	"time"

	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/journal"
)

// TraceEvent is one engine step as seen by assertions and golden files.
type TraceEvent struct {
	Seq         int64    `json:"seq"`
	OffsetMS    int64    `json:"offset_ms"`
	Trigger     string   `json:"trigger"`
	Outcome     string   `json:"outcome"`
	Transitions []string `json:"transitions"`
	Production  string   `json:"production"`
	Queue       []int    `json:"queue"`
	Completed   []int    `json:"completed"`
	EstimateMS  int64    `json:"estimate_ms"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// RunID is the journal run the trace was read from.
	RunID string `json:"run_id"`

	// Trace contains every engine step in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the engine snapshot after the last step.
	Final engine.Snapshot `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FormatTransition renders a transition as "region: from -> to".
func FormatTransition(t engine.Transition) string {
	return fmt.Sprintf("%s: %s -> %s", t.Region, t.From, t.To)
}

// TraceFromSteps converts journaled steps into trace events with offsets
// measured from start.
func TraceFromSteps(steps []journal.StepRecord, start time.Time) []TraceEvent {
	trace := make([]TraceEvent, len(steps))
	for i, s := range steps {
		transitions := make([]string, len(s.Transitions))
		for j, t := range s.Transitions {
			transitions[j] = FormatTransition(t)
		}
		trace[i] = TraceEvent{
			Seq:         s.Seq,
			OffsetMS:    s.At.Sub(start).Milliseconds(),
			Trigger:     s.Trigger,
			Outcome:     s.Outcome,
			Transitions: transitions,
			Production:  string(s.Production),
			Queue:       nonNil(s.QueueIDs),
			Completed:   nonNil(s.CompletedIDs),
			EstimateMS:  s.Estimated.Milliseconds(),
		}
	}
	return trace
}

// WriteTrace renders trace events as text, one block per step:
//
//	#2 +0s CREATE_TASK(priority=2, sequence=AT) accepted
//	  queue: waiting -> taskEnqueueing
//	  production=busy.elementSynthesis queue=[1] completed=[] estimate=0s
//
// Seq numbers are left out so the text is stable across clock changes.
func WriteTrace(w io.Writer, trace []TraceEvent) error {
	for i, ev := range trace {
		offset := time.Duration(ev.OffsetMS) * time.Millisecond
		if _, err := fmt.Fprintf(w, "#%d +%s %s %s\n", i+1, offset, ev.Trigger, ev.Outcome); err != nil {
			return err
		}
		for _, t := range ev.Transitions {
			if _, err := fmt.Fprintf(w, "  %s\n", t); err != nil {
				return err
			}
		}
		estimate := time.Duration(ev.EstimateMS) * time.Millisecond
		if _, err := fmt.Fprintf(w, "  production=%s queue=%v completed=%v estimate=%s\n",
			ev.Production, ev.Queue, ev.Completed, estimate); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
