package cascade

import "sync/atomic"

// RuntimeState is Cascade's scheduler state machine, adapted from the
// teacher's LoopState: the Awake/Running/Terminating/Terminated shape
// carries over, with the teacher's sleeping state repurposed as
// StateOpenLoop, the scheduler's open-loop mode (§4.6 "Clock &
// open-loop"), rather than poll-blocking.
type RuntimeState uint64

const (
	// StateAwake: the runtime has been constructed but Run has not been
	// called yet.
	StateAwake RuntimeState = 0
	// StateTerminated: the main loop has exited and teardown is complete.
	StateTerminated RuntimeState = 1
	// StateOpenLoop: the reference scheduler has handed control to the
	// open-loop fast path (§4.6).
	StateOpenLoop RuntimeState = 2
	// StateRunning: the reference scheduler's active/update/done-step loop
	// is in control.
	StateRunning RuntimeState = 3
	// StateTerminating: the main loop has observed a Finish request and
	// is running teardown.
	StateTerminating RuntimeState = 4
)

func (s RuntimeState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateOpenLoop:
		return "OpenLoop"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// RuntimeLifecycle is a lock-free state machine guarding the transitions
// a Runtime goes through across its eval → resync → recompile → engine
// hand-off lifecycle (§4.6), adapted from the teacher's FastState: pure
// CAS, no mutex, so the scheduler goroutine can check/flip it on every
// main-loop iteration without contention against Finish() calls arriving
// from another thread.
type RuntimeLifecycle struct {
	v atomic.Uint64
}

// NewRuntimeLifecycle creates a lifecycle in StateAwake.
func NewRuntimeLifecycle() *RuntimeLifecycle {
	l := &RuntimeLifecycle{}
	l.v.Store(uint64(StateAwake))
	return l
}

func (l *RuntimeLifecycle) Load() RuntimeState { return RuntimeState(l.v.Load()) }
func (l *RuntimeLifecycle) Store(s RuntimeState) { l.v.Store(uint64(s)) }

// TryTransition attempts a single CAS from→to.
func (l *RuntimeLifecycle) TryTransition(from, to RuntimeState) bool {
	return l.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts to move to `to` from any of validFrom.
func (l *RuntimeLifecycle) TransitionAny(validFrom []RuntimeState, to RuntimeState) bool {
	for _, from := range validFrom {
		if l.v.CompareAndSwap(uint64(from), uint64(to)) {
			return true
		}
	}
	return false
}

// IsFinished reports whether the runtime has fully terminated.
func (l *RuntimeLifecycle) IsFinished() bool { return l.Load() == StateTerminated }

// IsTerminating reports Terminating or Terminated — used to reject new
// Eval calls once the main loop has picked up a Finish request (§4.6
// "Finish").
func (l *RuntimeLifecycle) IsTerminating() bool {
	s := l.Load()
	return s == StateTerminating || s == StateTerminated
}
