package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/synth/internal/config"
	"github.com/roach88/synth/internal/model"
)

// Observer receives every step after it completes.
//
// CRITICAL: observers run inside the dispatch critical section, so they see
// steps in seq order. An observer must not call back into the Engine.
type Observer func(Step)

// Engine is the synthesizer: three state regions over one shared context,
// advanced by a single serialized dispatcher.
//
// Thread-safety model:
//   - Dispatch, Step, Advance, Snapshot: safe from any goroutine; each call
//     runs as one step under the engine mutex
//   - Enqueue: safe from any goroutine; applied by Run
//   - Run: must be called from exactly one goroutine
//
// INVARIANTS (checked by CheckInvariants):
//   - at most one queued task is processing; current is its id or 0
//   - queue order: processing first, then priority descending, then id
//   - completed tasks are never in the queue and appear once in the archive
//   - ElementsLeft exists only on the processing variant
type Engine struct {
	mu sync.Mutex

	timing    config.Timing
	now       TimeSource
	clock     *Clock
	logger    *slog.Logger
	observers []Observer
	inbox     *inbox

	// Shared context.
	tasks     map[int]*model.Task
	order     []int
	current   int
	completed []model.Task
	nextID    int
	inRow     int
	estimated time.Duration
	endTime   time.Time

	// Region states.
	production ProductionState
	queueState QueueState
	timers     timerSet

	// Per-step scratch, valid only inside the critical section.
	at          time.Time
	transitions []Transition
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an observer for every step.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine and enters the initial states: production idle,
// queue waiting, and a first estimator calculation at now.Now().
//
// timing must satisfy Timing.Validate; New panics otherwise.
func New(timing config.Timing, now TimeSource, opts ...Option) *Engine {
	if err := timing.Validate(); err != nil {
		panic("engine: " + err.Error())
	}

	e := &Engine{
		timing:     timing,
		now:        now,
		clock:      NewClock(),
		logger:     slog.Default(),
		inbox:      newInbox(),
		tasks:      make(map[int]*model.Task),
		nextID:     1,
		production: ProductionIdle,
		queueState: QueueWaiting,
		timers:     newTimerSet(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.beginStep(now.Now())
	e.calculateTime()
	e.finishStep(Trigger{Kind: TriggerStart}, Accepted)

	return e
}

// Dispatch applies one command as a single step.
//
// Timers already due at the current time fire first, each as its own step.
// Returns Rejected when a guard refuses the command; an InvariantError when
// the id is unknown; a CommandError when the payload is invalid. On error
// the context is unchanged and no step is emitted.
func (e *Engine) Dispatch(cmd Command) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now.Now()
	e.fireDue(now)

	e.beginStep(now)
	outcome, err := e.applyCommand(cmd)
	if err != nil {
		e.transitions = nil
		e.logger.Error("command failed",
			"command", cmd.Type,
			"task_id", cmd.ID,
			"error", err,
		)
		return 0, err
	}
	if outcome == Rejected {
		e.logger.Debug("command rejected by guard",
			"command", cmd.Type,
			"task_id", cmd.ID,
		)
	}
	e.settle()
	e.finishStep(Trigger{Kind: TriggerCommand, Command: &cmd}, outcome)

	return outcome, nil
}

// Step fires every timer due at or before now, one step per timer.
func (e *Engine) Step(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fireDue(now)
}

// Advance moves a virtual clock forward by d, firing each timer at its exact
// due time along the way.
func (e *Engine) Advance(d time.Duration) error {
	vc, ok := e.now.(*VirtualClock)
	if !ok {
		return ErrNotVirtual
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	target := vc.Now().Add(d)
	e.fireDue(target)
	vc.Set(target)
	return nil
}

// NextTimer returns when the earliest pending timer is due.
func (e *Engine) NextTimer() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers.next()
	return t.due, ok
}

// Enqueue submits a command for the Run loop.
// Returns false once the engine has been stopped.
func (e *Engine) Enqueue(cmd Command) bool {
	return e.inbox.Enqueue(cmd)
}

// Stop closes the inbox; Run returns after draining it.
func (e *Engine) Stop() {
	e.inbox.Close()
}

// Run drives the engine from its TimeSource until ctx is cancelled or Stop
// is called. Enqueued commands and due timers are applied in one goroutine.
//
// ERROR HANDLING: a failed command is logged with its payload and the loop
// continues; the failed command left the context unchanged.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	wake := time.NewTimer(time.Hour)
	defer wake.Stop()

	for {
		for {
			cmd, ok := e.inbox.TryDequeue()
			if !ok {
				break
			}
			// Dispatch already logged the failure.
			_, _ = e.Dispatch(cmd)
		}

		e.Step(e.now.Now())

		if e.inbox.Closed() && e.inbox.Len() == 0 {
			e.logger.Info("engine stopping: inbox closed")
			return nil
		}

		wait := time.Hour
		if due, ok := e.NextTimer(); ok {
			wait = max(due.Sub(e.now.Now()), 0)
		}
		wake.Reset(wait)

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.inbox.Close()
			return ctx.Err()
		case <-e.inbox.Wait():
		case <-wake.C:
		}
	}
}

// Snapshot returns a deep copy of the current context.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(e.now.Now())
}

// Timing returns the engine's timing constants.
func (e *Engine) Timing() config.Timing {
	return e.timing
}

// fireDue fires timers in due order until none is due at or before until.
// Each timer is one step. Caller holds e.mu.
func (e *Engine) fireDue(until time.Time) {
	for {
		t, ok := e.timers.next()
		if !ok || t.due.After(until) {
			return
		}
		e.timers.cancel(t.kind)

		e.beginStep(t.due)
		switch t.kind {
		case timerElementTick:
			e.elementTick()
		case timerMaintenanceHold:
			e.endMaintenance()
		case timerEstimatorTick:
			e.calculateTime()
		}
		e.settle()
		e.finishStep(Trigger{Kind: TriggerTimer, Timer: t.kind.String()}, Accepted)
	}
}

// settle runs eventless transitions until the configuration is stable.
func (e *Engine) settle() {
	if e.production == ProductionIdle && e.hasPending() {
		e.startTask()
	}
}

func (e *Engine) beginStep(at time.Time) {
	e.at = at
	e.transitions = nil
}

func (e *Engine) finishStep(trigger Trigger, outcome Outcome) {
	step := Step{
		Seq:         e.clock.Next(),
		At:          e.at,
		Trigger:     trigger,
		Outcome:     outcome,
		Transitions: e.transitions,
		Snapshot:    e.snapshot(e.at),
	}
	e.transitions = nil

	for _, o := range e.observers {
		o(step)
	}
}

// enter records a transition of region into state.
func (e *Engine) enter(region Region, from, to string) {
	e.transitions = append(e.transitions, Transition{Region: region, From: from, To: to})
	e.logger.Debug("transition",
		"region", region,
		"from", from,
		"to", to,
		"at", e.at,
	)
}

func (e *Engine) schedule(kind timerKind, delay time.Duration) {
	e.timers.schedule(kind, e.at.Add(delay), e.clock.Next())
}

func (e *Engine) indexOf(id int) int {
	return slices.Index(e.order, id)
}

func (e *Engine) snapshot(at time.Time) Snapshot {
	s := Snapshot{
		At:                    at,
		Production:            e.production,
		QueueRegion:           e.queueState,
		Queue:                 make([]model.Task, 0, len(e.order)),
		CompletedTasks:        slices.Clone(e.completed),
		NextTaskID:            e.nextID,
		TasksCompletedInRow:   e.inRow,
		AllTasksEstimatedTime: e.estimated,
		AllTasksEndTime:       e.endTime,
	}
	if s.CompletedTasks == nil {
		s.CompletedTasks = []model.Task{}
	}
	for _, id := range e.order {
		s.Queue = append(s.Queue, *e.tasks[id])
	}
	if e.current != 0 {
		if t, ok := e.tasks[e.current]; ok {
			cur := *t
			s.CurrentTask = &cur
		}
	}
	return s
}
