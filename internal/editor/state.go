package editor

// State is the readiness lifecycle of a facade.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// canTransition allows only forward moves. Destroyed is terminal; a new
// mount needs a new facade.
func canTransition(from, to State) bool {
	switch to {
	case Initializing:
		return from == Uninitialized
	case Ready:
		return from == Initializing
	case Destroyed:
		return from != Destroyed
	default:
		return false
	}
}
