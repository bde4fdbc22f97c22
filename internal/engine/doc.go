// Package engine implements the synthesizer: a single-resource production
// scheduler built from three parallel state regions sharing one context.
//
// ARCHITECTURE:
//
// Regions:
//   - Production: idle -> busy{taskStarted -> elementSynthesis -> taskCompleted}
//     -> (idle | onMaintenance) -> idle. Works one element per tick on the
//     highest-priority pending task and forces a maintenance hold after a
//     streak of completions.
//   - Queue: waiting -> {taskEnqueueing, taskEditing, taskDeleting}
//     -> sortByPriorities -> waiting. Applies the task commands and keeps the
//     queue ordered.
//   - Estimator: calculateTime, re-entered every estimate interval. Projects
//     per-task end times and the aggregate estimate from the queue.
//
// Single-Writer Dispatch:
// Every mutation of the shared context happens inside one step. A step is
// either one external command or one fired timer, processed to completion
// including the eventless transitions that follow (idle -> busy). Steps are
// serialized by the engine mutex, so regions never observe each other
// half-way through a transition.
//
// Timers:
// Each timer belongs to the state that scheduled it. Leaving the state drops
// the timer; there is no other cancellation. Timers due at the same instant
// fire in the order they were scheduled (logical clock seq).
//
// Time:
// The engine reads time from a TimeSource. Tests and simulations use a
// VirtualClock and call Advance, which fires timers at their exact due time
// without sleeping. Run drives timers from the wall clock.
//
// Task lookup is by id (tasks map + ordered id slice); the engine never holds
// pointers into the ordered queue across a re-sort.
package engine
