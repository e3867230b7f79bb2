// Package cursor bounds each crawl run to postings newer than the last run.
//
// The state machine is pure: Step maps (State, posting id) to a new State and
// an Action. The Walker drives it over a PageSource and persists the marker
// through a CursorStore only when Commit is called.
package cursor

// Phase is the lifecycle position of a cursor within one run.
type Phase int

// Cursor phases.
const (
	PhaseUninitialized Phase = iota
	PhaseArmed
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseArmed:
		return "armed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Action tells the driver whether to keep walking.
type Action int

// Walk actions.
const (
	Continue Action = iota
	Stop
)

func (a Action) String() string {
	if a == Continue {
		return "continue"
	}
	return "stop"
}

// State is the cursor value threaded through a run.
type State struct {
	Phase Phase
	// Marker is the id of the first posting seen by the previous run.
	Marker    string
	HasMarker bool
	// Pending is the id of the first posting seen by this run.
	Pending    string
	HasPending bool
}

// Arm starts a run from the persisted marker. Only an uninitialized state can
// be armed; any other state is returned unchanged.
func Arm(s State, marker string, ok bool) State {
	if s.Phase != PhaseUninitialized {
		return s
	}
	return State{Phase: PhaseArmed, Marker: marker, HasMarker: ok && marker != ""}
}

// Step consumes one posting id in fetch order. The first id of the run
// becomes the pending marker. Reaching the previous marker closes the cursor
// and the posting at the marker is not emitted.
func Step(s State, postingID string) (State, Action) {
	if s.Phase != PhaseArmed {
		return s, Stop
	}
	if !s.HasPending {
		s.Pending = postingID
		s.HasPending = true
	}
	if s.HasMarker && s.Marker == postingID {
		s.Phase = PhaseClosed
		return s, Stop
	}
	return s, Continue
}
