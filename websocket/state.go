package websocket

// State is the lifecycle position of a Client.
//
// A client only moves forward: Disconnected, Connecting, Open, Closed.
// Closed is terminal; a closed client is never reconnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
