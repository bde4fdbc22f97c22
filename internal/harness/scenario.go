package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/engine"
	"github.com/roach88/synth/internal/model"
)

// Scenario defines a conformance test scenario.
// Scenarios drive the engine on virtual time through a list of commands and
// clock advances, then assert on the final snapshot and the step trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timing overrides the default timing constants.
	Timing *TimingOverrides `yaml:"timing,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final snapshot and trace.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id for the journal.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// TimingOverrides replaces individual timing constants, in milliseconds.
type TimingOverrides struct {
	ElementSynthesisMS     *int64 `yaml:"element_synthesis_ms,omitempty"`
	OnMaintenanceMS        *int64 `yaml:"on_maintenance_ms,omitempty"`
	EstimateIntervalMS     *int64 `yaml:"estimate_interval_ms,omitempty"`
	TasksBeforeMaintenance *int   `yaml:"tasks_before_maintenance,omitempty"`
}

// Step is either a command or a clock advance.
type Step struct {
	// Command is a command type name such as CREATE_TASK.
	Command  string `yaml:"command,omitempty"`
	ID       int    `yaml:"id,omitempty"`
	Priority int    `yaml:"priority,omitempty"`
	Sequence string `yaml:"sequence,omitempty"`

	// Expect is the expected command result (default "accepted").
	Expect string `yaml:"expect,omitempty"`

	// Advance is a Go duration string, e.g. "6s" or "1500ms".
	Advance string `yaml:"advance,omitempty"`
}

// Expected command results.
const (
	ExpectAccepted = "accepted"
	ExpectRejected = "rejected"
	ExpectNotFound = "not_found"
	ExpectInvalid  = "invalid"
)

// IsAdvance reports whether the step advances the clock.
func (s Step) IsAdvance() bool {
	return s.Advance != ""
}

// ToCommand builds the engine command for a command step.
func (s Step) ToCommand() (engine.Command, error) {
	ct, err := engine.ParseCommandType(s.Command)
	if err != nil {
		return engine.Command{}, err
	}
	return engine.Command{
		Type:     ct,
		ID:       s.ID,
		Priority: model.Priority(s.Priority),
		Sequence: s.Sequence,
	}, nil
}

// Duration parses the advance duration.
func (s Step) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(s.Advance)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative advance %s", s.Advance)
	}
	return d, nil
}

// ExpectedResult returns Expect, defaulting to accepted.
func (s Step) ExpectedResult() string {
	if s.Expect == "" {
		return ExpectAccepted
	}
	return s.Expect
}

// Assertion validates the final snapshot or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "queue_order": queued task ids in order
	// - "completed_order": archived task ids in completion order
	// - "production_state": production region state
	// - "queue_state": queue region state
	// - "task_status": status (and optionally elements left) of a task
	// - "streak": tasks completed since the last maintenance
	// - "estimate": aggregate estimate, optionally the end offset
	// - "task_end": projected end offset of a queued task
	// - "trace_contains": a transition appears in the trace
	// - "trace_order": transitions appear in order
	// - "trace_count": steps with a trigger appear exactly N times
	Type string `yaml:"type"`

	// IDs are the expected task ids (queue_order, completed_order).
	IDs []int `yaml:"ids,omitempty"`

	// State is the expected region state (production_state, queue_state).
	State string `yaml:"state,omitempty"`

	// ID and Status select and check a task (task_status, task_end).
	ID           int    `yaml:"id,omitempty"`
	Status       string `yaml:"status,omitempty"`
	ElementsLeft *int   `yaml:"elements_left,omitempty"`

	// Count is the expected streak (streak) or occurrence count (trace_count).
	Count *int `yaml:"count,omitempty"`

	// MS is the expected estimate or end offset in milliseconds
	// (estimate, task_end). EndMS is the aggregate end offset (estimate).
	MS    *int64 `yaml:"ms,omitempty"`
	EndMS *int64 `yaml:"end_ms,omitempty"`

	// Transition is "region: from -> to" (trace_contains).
	Transition string `yaml:"transition,omitempty"`

	// Transitions is the expected transition order (trace_order).
	Transitions []string `yaml:"transitions,omitempty"`

	// Trigger matches a step trigger exactly or by command type (trace_count).
	Trigger string `yaml:"trigger,omitempty"`
}

// Assertion type constants.
const (
	AssertQueueOrder      = "queue_order"
	AssertCompletedOrder  = "completed_order"
	AssertProductionState = "production_state"
	AssertQueueState      = "queue_state"
	AssertTaskStatus      = "task_status"
	AssertStreak          = "streak"
	AssertEstimate        = "estimate"
	AssertTaskEnd         = "task_end"
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
)

// Apply returns base with the overrides applied.
func (o *TimingOverrides) Apply(base config.Timing) config.Timing {
	if o == nil {
		return base
	}
	if o.ElementSynthesisMS != nil {
		base.ElementSynthesis = time.Duration(*o.ElementSynthesisMS) * time.Millisecond
	}
	if o.OnMaintenanceMS != nil {
		base.OnMaintenance = time.Duration(*o.OnMaintenanceMS) * time.Millisecond
	}
	if o.EstimateIntervalMS != nil {
		base.EstimateInterval = time.Duration(*o.EstimateIntervalMS) * time.Millisecond
	}
	if o.TasksBeforeMaintenance != nil {
		base.TasksBeforeMaintenance = *o.TasksBeforeMaintenance
	}
	return base
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := s.Timing.Apply(config.DefaultTiming()).Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s Step) error {
	switch {
	case s.Command != "" && s.IsAdvance():
		return fmt.Errorf("steps[%d]: command and advance are mutually exclusive", index)
	case s.IsAdvance():
		if _, err := s.Duration(); err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if s.Expect != "" {
			return fmt.Errorf("steps[%d]: expect is only valid for commands", index)
		}
	case s.Command != "":
		if _, err := s.ToCommand(); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		switch s.ExpectedResult() {
		case ExpectAccepted, ExpectRejected, ExpectNotFound, ExpectInvalid:
		default:
			return fmt.Errorf("steps[%d]: unknown expect %q", index, s.Expect)
		}
	default:
		return fmt.Errorf("steps[%d]: command or advance is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertQueueOrder, AssertCompletedOrder:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for %s (use [] for none)", index, a.Type)
		}
	case AssertProductionState, AssertQueueState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for %s", index, a.Type)
		}
	case AssertTaskStatus:
		if a.ID <= 0 {
			return fmt.Errorf("assertions[%d]: id is required for task_status", index)
		}
		if !model.Status(a.Status).Valid() {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	case AssertStreak:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for streak", index)
		}
	case AssertEstimate:
		if a.MS == nil && a.EndMS == nil {
			return fmt.Errorf("assertions[%d]: ms or end_ms is required for estimate", index)
		}
	case AssertTaskEnd:
		if a.ID <= 0 || a.MS == nil {
			return fmt.Errorf("assertions[%d]: id and ms are required for task_end", index)
		}
	case AssertTraceContains:
		if a.Transition == "" {
			return fmt.Errorf("assertions[%d]: transition is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Transitions) == 0 {
			return fmt.Errorf("assertions[%d]: transitions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Trigger == "" {
			return fmt.Errorf("assertions[%d]: trigger is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
