package fluid

import "fmt"

// State is the position of a domain in its step state machine.
//
//	Loading -> Init -> Update <-> Idle
//
// Any state can move to Failed, which is terminal.
type State int

const (
	StateLoading State = iota
	StateInit
	StateUpdate
	StateIdle
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateInit:
		return "init"
	case StateUpdate:
		return "update"
	case StateIdle:
		return "idle"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Tick is one host physics tick. Numbers increase monotonically from 1.
type Tick struct {
	Number uint64
	Dt     float32
}
