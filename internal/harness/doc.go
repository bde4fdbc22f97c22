// Package harness runs YAML scenarios against the synthesizer engine.
//
// # Scenario Format
//
//	name: maintenance_after_five
//	description: "Five completions force a maintenance hold"
//	timing:
//	  on_maintenance_ms: 5000
//	steps:
//	  - command: CREATE_TASK
//	    priority: 2
//	    sequence: ATGC
//	  - command: EDIT_TASK
//	    id: 9
//	    expect: not_found
//	  - advance: 10s
//	assertions:
//	  - type: production_state
//	    state: onMaintenance
//	  - type: trace_contains
//	    transition: "production: busy.taskCompleted -> onMaintenance"
//
// Steps are either a command (with the payload fields it needs) or an
// advance of the virtual clock. Commands expect "accepted" unless told
// otherwise; "rejected", "not_found" and "invalid" cover guard refusals,
// unknown ids and bad payloads.
//
// # Assertion Types
//
//   - queue_order, completed_order: task ids in order
//   - production_state, queue_state: region state names
//   - task_status: status and optionally elements left
//   - streak: tasks completed since the last maintenance
//   - estimate, task_end: estimator results as offsets in ms
//   - trace_contains, trace_order: transitions recorded in the trace
//   - trace_count: number of steps with a trigger
//
// # Deterministic Testing
//
// Every scenario starts at testutil.Epoch on a virtual clock, with a fixed
// run id and a fresh in-memory journal. The trace is read back from the
// journal, so the same scenario always produces the same golden text.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/priority_order.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
