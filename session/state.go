package session

import "fmt"

// State is the lifecycle of a session.
//
//	Uninitialized -> Anchored -> Populated -> Sampling
//	any attach or sampling failure -> Lost -> (backoff) Uninitialized
//	context cancelled or process gone -> Terminated
type State int32

const (
	Uninitialized State = iota
	Anchored
	Populated
	Sampling
	Lost
	Terminated
)

var stateNames = [...]string{"uninitialized", "anchored", "populated", "sampling", "lost", "terminated"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
