package scheduler

// State is the lifecycle state of a Scheduler.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Accepting reports whether sources may still be attached.
func (s State) Accepting() bool {
	return s == StateIdle || s == StateRunning
}
