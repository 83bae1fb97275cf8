package lifecycle

import (
	"integctl/internal/reporting"
)

// State aliases the reporting state so updates carry it unconverted.
type State = reporting.State

// Lifecycle states.
const (
	StateCreated   = reporting.StateCreated
	StateGenerated = reporting.StateGenerated
	StateBuilt     = reporting.StateBuilt
	StateDeploying = reporting.StateDeploying
	StateReady     = reporting.StateReady
	StateFailed    = reporting.StateFailed
	StateTornDown  = reporting.StateTornDown
)

// transitions lists the legal successors of each state. TornDown is
// reachable from everywhere; Failed from every state after Built.
var transitions = map[State][]State{
	StateCreated:   {StateGenerated, StateTornDown},
	StateGenerated: {StateBuilt, StateTornDown},
	StateBuilt:     {StateDeploying, StateFailed, StateTornDown},
	StateDeploying: {StateReady, StateFailed, StateTornDown},
	StateReady:     {StateFailed, StateTornDown},
	StateFailed:    {StateTornDown},
	StateTornDown:  nil,
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
