package train

import "fmt"

// State is the lifecycle position of a Session.
type State int

// Session states. A session is New until Start restores (or fails to find)
// persisted state; Run moves it to Running and, after the last epoch, to
// Terminated.
const (
	StateNew State = iota
	StateFresh
	StateResumed
	StateRunning
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateFresh:
		return "fresh"
	case StateResumed:
		return "resumed"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
