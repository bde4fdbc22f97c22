package engine

import "time"

// timerKind identifies the state that owns a timer.
type timerKind int

const (
	timerElementTick timerKind = iota + 1
	timerMaintenanceHold
	timerEstimatorTick
)

func (k timerKind) String() string {
	switch k {
	case timerElementTick:
		return "element_tick"
	case timerMaintenanceHold:
		return "maintenance_hold"
	case timerEstimatorTick:
		return "estimator_tick"
	default:
		return "unknown"
	}
}

type timer struct {
	kind timerKind
	due  time.Time
	seq  int64
}

// timerSet holds at most one pending timer per kind.
//
// Scheduling a kind replaces its pending timer, which is how re-entering a
// state restarts its delay. Cancelling drops it, which is how exiting a
// state invalidates its delay.
type timerSet struct {
	pending map[timerKind]timer
}

func newTimerSet() timerSet {
	return timerSet{pending: make(map[timerKind]timer, 3)}
}

func (s *timerSet) schedule(kind timerKind, due time.Time, seq int64) {
	s.pending[kind] = timer{kind: kind, due: due, seq: seq}
}

func (s *timerSet) cancel(kind timerKind) {
	delete(s.pending, kind)
}

func (s *timerSet) has(kind timerKind) bool {
	_, ok := s.pending[kind]
	return ok
}

// next returns the earliest pending timer; ties go to the lowest seq.
func (s *timerSet) next() (timer, bool) {
	var best timer
	found := false
	for _, t := range s.pending {
		if !found || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
			found = true
		}
	}
	return best, found
}
