package types

// LifecycleState tracks a work item through its life.
type LifecycleState string

const (
	StateInitializing LifecycleState = "initializing"
	StateResumed      LifecycleState = "resumed"
	StatePausing      LifecycleState = "pausing"
	StatePaused       LifecycleState = "paused"
	StateStopping     LifecycleState = "stopping"
	StateStopped      LifecycleState = "stopped"
	StateFinishing    LifecycleState = "finishing"
	StateDestroying   LifecycleState = "destroying"
	StateDestroyed    LifecycleState = "destroyed"
)

// legalTransitions is the closed transition table. Pausing -> Resumed is
// the one back-edge: a resume re-requested before the pause completes.
var legalTransitions = map[LifecycleState][]LifecycleState{
	StateInitializing: {StateResumed, StateFinishing, StateDestroying},
	StateResumed:      {StatePausing, StateFinishing},
	StatePausing:      {StatePaused, StateResumed},
	StatePaused:       {StateResumed, StateStopping, StateFinishing},
	StateStopping:     {StateStopped, StateFinishing},
	StateStopped:      {StateResumed, StateFinishing, StateDestroying},
	StateFinishing:    {StateDestroying},
	StateDestroying:   {StateDestroyed},
	StateDestroyed:    {},
}

// CanTransition reports whether moving from s to next is legal.
func (s LifecycleState) CanTransition(next LifecycleState) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist.
func (s LifecycleState) Terminal() bool {
	return s == StateDestroyed
}

// Quiescent reports whether the item is at rest: nothing in flight
// that the sequencer still has to drive forward.
func (s LifecycleState) Quiescent() bool {
	switch s {
	case StatePaused, StateStopped, StateDestroyed:
		return true
	}
	return false
}
