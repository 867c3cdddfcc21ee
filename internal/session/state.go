package session

// State is the lifecycle phase of a Session. Transitions are one-way and a
// terminal state is never left; a new connection attempt means a new
// Session.
type State int

const (
	// StateConnecting is the initial state of every Session.
	StateConnecting State = iota
	// StateConnected means the transport is up and frames flow both ways.
	StateConnected
	// StateClosed is terminal: the session ended cleanly, by either side.
	StateClosed
	// StateError is terminal: a dial or transport failure ended the session.
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// event is a lifecycle trigger fed to the transition table.
type event int

const (
	eventDialOK event = iota
	eventDialFailed
	eventReadFailed
	eventPeerClosed
	eventLocalClose
)

// next returns the state reached from s by ev. ok is false when ev is not
// legal in s; an illegal event leaves the state untouched.
func next(s State, ev event) (to State, ok bool) {
	switch s {
	case StateConnecting:
		switch ev {
		case eventDialOK:
			return StateConnected, true
		case eventDialFailed:
			return StateError, true
		case eventLocalClose:
			return StateClosed, true
		}
	case StateConnected:
		switch ev {
		case eventReadFailed:
			return StateError, true
		case eventPeerClosed, eventLocalClose:
			return StateClosed, true
		}
	}
	return s, false
}

// StateChange describes one applied transition, delivered on
// [Session.Events]. Err is set when To is [StateError].
type StateChange struct {
	From State
	To   State
	Err  error
}
