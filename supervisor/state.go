package supervisor

// State is the supervisor lifecycle state.
type State int32

const (
	Idle State = iota
	Deploying
	Ready
	Running
	Exited
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Deploying:
		return "Deploying"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Exited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// canStart reports whether a new start is accepted from s. The runtime
// runs at most once per process, so Exited is terminal.
func (s State) canStart() bool {
	switch s {
	case Idle, Deploying, Ready:
		return true
	default:
		return false
	}
}
