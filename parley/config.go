package parley

import "time"

// Config controls how the client connects and keeps the session alive.
type Config struct {
	URL   string // websocket endpoint, e.g. "ws://localhost:8080/ws"
	Token string // bearer token sent in the auth frame

	// AuthTimeout bounds the whole handshake: Connect fails if the server
	// has not acknowledged authentication within it.
	AuthTimeout time.Duration

	// HeartbeatInterval is the quiet period between keepalive pings.
	HeartbeatInterval time.Duration

	// Reconnect backoff: delay for attempt n is
	// min(ReconnectBaseDelay * 2^(n-1), ReconnectMaxDelay).
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int

	// TypingQuietPeriod is how long after the last keystroke a typing
	// indicator is withdrawn.
	TypingQuietPeriod time.Duration

	ReadTimeout  time.Duration // 0 disables; must exceed the server's ping cadence if set
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AuthTimeout:          5 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   2 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		TypingQuietPeriod:    2 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}
