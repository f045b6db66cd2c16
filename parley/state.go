package parley

// ConnectionState represents the current state of the session.
type ConnectionState int

const (
	// StateDisconnected means the client is not connected and no attempt is in flight.
	StateDisconnected ConnectionState = iota

	// StateConnecting means the client is establishing a connection and authenticating.
	StateConnecting

	// StateConnected means the session is authenticated and ready.
	StateConnected

	// StateReconnecting means the client lost the connection and is retrying with backoff.
	StateReconnecting

	// StateFailed means the session gave up. A new Connect call is required to recover.
	StateFailed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateEvent represents a state change on the session's state stream.
type StateEvent struct {
	Old ConnectionState
	New ConnectionState

	// Reason is set when the transition was caused by a failure
	// (New is StateReconnecting or StateFailed).
	Reason error
}
