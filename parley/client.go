package parley

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/parley-im/parley-go/parley/internal"

	"github.com/coder/websocket"
)

// Client owns one long-lived socket to the chat server. It performs the
// auth handshake, keeps the session alive with heartbeats, recovers from
// transport failures with bounded exponential backoff, and fans inbound
// frames out to registered handlers as typed events.
//
// All state lives behind a single mutex: the receive loop, the heartbeat
// task, a pending reconnect and caller-initiated Connect/Disconnect/send
// calls all touch it concurrently.
type Client struct {
	cfg    Config
	logger Logger
	disp   dispatcher
	policy reconnectPolicy

	mu       sync.Mutex
	token    string
	state    ConnectionState
	conn     *internal.Conn
	cancel   context.CancelFunc // stops the read loop, heartbeat, or a pending backoff wait
	authCh   chan authResult    // non-nil while a handshake awaits its ack
	pendFail error              // transport failure that raced a successful handshake
	authed   bool
	attempts int
	gen      uint64 // transport generation; stale failure reports are ignored

	wmu sync.Mutex // one frame write completes before the next begins
}

type authResult struct {
	userID string
	err    error
}

// NewClient constructs a client with the provided config.
// Use DefaultConfig() as a starting point and modify as needed.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = def.AuthTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.TypingQuietPeriod <= 0 {
		cfg.TypingQuietPeriod = def.TypingQuietPeriod
	}
	return &Client{
		cfg:    cfg,
		token:  cfg.Token,
		logger: noopLogger{},
		policy: reconnectPolicy{
			base:        cfg.ReconnectBaseDelay,
			max:         cfg.ReconnectMaxDelay,
			maxAttempts: cfg.MaxReconnectAttempts,
		},
	}
}

// SetLogger overrides the logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// SetToken replaces the credential used for the auth handshake. It applies
// to the next Connect or reconnect, not to an already authenticated session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnEvent registers a handler for every inbound event.
func (c *Client) OnEvent(fn func(Event)) { c.disp.addEvent(fn) }

// OnMessage registers a handler for chat messages.
func (c *Client) OnMessage(fn func(MessageEvent)) { c.disp.addMessage(fn) }

// OnMessageAck registers a handler for delivery acknowledgments.
func (c *Client) OnMessageAck(fn func(MessageAckEvent)) { c.disp.addAck(fn) }

// OnTyping registers a handler for typing indicators.
func (c *Client) OnTyping(fn func(TypingEvent)) { c.disp.addTyping(fn) }

// OnPresence registers a handler for presence changes.
func (c *Client) OnPresence(fn func(PresenceEvent)) { c.disp.addPresence(fn) }

// OnUserRegistered registers a handler for new-user notifications.
func (c *Client) OnUserRegistered(fn func(UserRegisteredEvent)) { c.disp.addUserRegistered(fn) }

// OnServerError registers a handler for server-reported errors.
func (c *Client) OnServerError(fn func(ServerErrorEvent)) { c.disp.addServerError(fn) }

// OnConnected registers a handler fired when the session authenticates.
func (c *Client) OnConnected(fn func(ConnectedEvent)) { c.disp.addConnected(fn) }

// OnDisconnected registers a handler fired when the session drops.
func (c *Client) OnDisconnected(fn func(DisconnectedEvent)) { c.disp.addDisconnected(fn) }

// OnStateChange registers a handler for connection state transitions.
func (c *Client) OnStateChange(fn func(StateEvent)) { c.disp.addState(fn) }

// Connect opens the transport, authenticates, and starts the session
// loops. It blocks until the server acknowledges authentication or the
// auth timeout elapses; on failure the transport is closed and the state
// becomes Failed. Calling Connect while a session is live or an attempt
// is in flight is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}

	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return nil
	}
	if c.token == "" {
		c.mu.Unlock()
		return NewError(ErrorAuthenticationFailed, "no credential available")
	}
	c.attempts = 0
	ev, changed := c.transitionLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.emit(ev, changed)

	if err := c.establish(ctx); err != nil {
		c.mu.Lock()
		if c.state != StateConnecting {
			c.mu.Unlock()
			return err
		}
		fev, fchanged := c.transitionLocked(StateFailed, err)
		c.mu.Unlock()
		c.emit(fev, fchanged)
		return err
	}
	return nil
}

// Disconnect tears the session down: it cancels the heartbeat, any pending
// reconnect wait and the receive loop, closes the transport, and settles
// in Disconnected. Repeat calls are no-ops.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.authed = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.authCh = nil
	c.gen++
	ev, changed := c.transitionLocked(StateDisconnected, nil)
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	c.disp.dispatch(DisconnectedEvent{})
	c.emit(ev, changed)
	return err
}

// SendMessage sends one chat message frame. id is the client-generated
// message id used for delivery reconciliation; a Tracker supplies it.
func (c *Client) SendMessage(ctx context.Context, id, content, roomID string) error {
	payload, err := encodeMessage(id, content, roomID)
	if err != nil {
		return err
	}
	return c.send(ctx, string(payload))
}

// SendTyping sends a typing indicator frame.
func (c *Client) SendTyping(ctx context.Context, roomID string, isTyping bool) error {
	payload, err := encodeTyping(roomID, isTyping)
	if err != nil {
		return err
	}
	return c.send(ctx, string(payload))
}

// NewTracker returns a delivery tracker for roomID that sends through this
// client and receives its inbound events.
func (c *Client) NewTracker(roomID, localUserID string) *Tracker {
	t := NewTracker(c, roomID, localUserID)
	t.SetLogger(c.logger)
	c.OnEvent(t.HandleEvent)
	return t
}

// NewTypingDebouncer returns a debouncer that emits typing intents for
// roomID through this client. Intents are fire-and-forget; send failures
// are logged and dropped.
func (c *Client) NewTypingDebouncer(roomID string) *TypingDebouncer {
	return NewTypingDebouncer(c.cfg.TypingQuietPeriod, func(isTyping bool) {
		ctx := context.Background()
		cancel := context.CancelFunc(func() {})
		if c.cfg.WriteTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		}
		defer cancel()
		if err := c.SendTyping(ctx, roomID, isTyping); err != nil {
			c.logger.Debug("typing intent dropped", map[string]any{"room": roomID, "error": err.Error()})
		}
	})
}

// send fails fast when the session is not authenticated. It never retries;
// retry is the caller's responsibility.
func (c *Client) send(ctx context.Context, payload string) error {
	c.mu.Lock()
	if !c.authed || c.conn == nil {
		c.mu.Unlock()
		return NewError(ErrorNotConnected, "session is not authenticated")
	}
	conn := c.conn
	c.mu.Unlock()

	if err := c.writeFrame(ctx, conn, payload); err != nil {
		return WrapError(ErrorTransport, "write frame", err)
	}
	return nil
}

func (c *Client) writeFrame(ctx context.Context, conn *internal.Conn, payload string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return conn.WriteText(ctx, payload)
}

// establish runs the full connect sequence: dial, start the receive loop,
// send the auth frame, and wait for the ack. On success the state becomes
// Connected and the heartbeat starts. Used by Connect and by reconnects.
func (c *Client) establish(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return WrapError(ErrorInvalidConfig, "parse URL", err)
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token == "" {
		return NewError(ErrorAuthenticationFailed, "no credential available")
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.AuthTimeout)
	defer cancelDial()
	ws, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return WrapError(ErrorTransport, "dial", err)
	}

	conn := internal.NewConn(ws, c.cfg.ReadTimeout, c.cfg.WriteTimeout)
	runCtx, cancel := context.WithCancel(context.Background())
	authCh := make(chan authResult, 1)

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.authCh = authCh
	c.pendFail = nil
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(runCtx, conn, gen)

	payload, err := encodeAuth(token)
	if err != nil {
		c.abortHandshake(conn, cancel)
		return err
	}
	if werr := c.writeFrame(ctx, conn, string(payload)); werr != nil {
		c.abortHandshake(conn, cancel)
		return WrapError(ErrorAuthenticationFailed, "send auth frame", werr)
	}

	timer := time.NewTimer(c.cfg.AuthTimeout)
	defer timer.Stop()

	var res authResult
	select {
	case res = <-authCh:
		if res.err != nil {
			c.abortHandshake(conn, cancel)
			return res.err
		}
	case <-timer.C:
		c.abortHandshake(conn, cancel)
		return NewError(ErrorAuthenticationFailed, "authentication not acknowledged within timeout")
	case <-ctx.Done():
		c.abortHandshake(conn, cancel)
		return WrapError(ErrorAuthenticationFailed, "connect aborted", ctx.Err())
	case <-runCtx.Done():
		c.abortHandshake(conn, cancel)
		return NewError(ErrorAuthenticationFailed, "connection closed during handshake")
	}

	c.mu.Lock()
	if c.state != StateConnecting && c.state != StateReconnecting {
		// Disconnect won the race during the handshake
		c.mu.Unlock()
		c.abortHandshake(conn, cancel)
		return NewError(ErrorAuthenticationFailed, "session closed during handshake")
	}
	c.authed = true
	c.attempts = 0
	c.authCh = nil
	pending := c.pendFail
	c.pendFail = nil
	ev, changed := c.transitionLocked(StateConnected, nil)
	c.mu.Unlock()
	c.emit(ev, changed)
	c.disp.dispatch(ConnectedEvent{UserID: res.userID})

	go c.runHeartbeat(runCtx, gen)
	if pending != nil {
		// the transport died between the ack and now
		c.transportFailed(gen, pending)
	}
	return nil
}

func (c *Client) abortHandshake(conn *internal.Conn, cancel context.CancelFunc) {
	cancel()
	_ = conn.Close(websocket.StatusPolicyViolation, "handshake failed")
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.cancel = nil
		c.authCh = nil
		c.pendFail = nil
	}
	c.mu.Unlock()
}

// readLoop is the single receive loop for one transport instance. It never
// exits without either an expected shutdown or a state transition.
func (c *Client) readLoop(ctx context.Context, conn *internal.Conn, gen uint64) {
	for {
		payload, err := conn.ReadText(ctx)
		if err != nil {
			if isExpectedDisconnect(ctx, err) {
				return
			}
			c.transportFailed(gen, WrapError(ErrorTransport, "read", err))
			return
		}

		ev, reply, derr := decodeFrame(payload)
		if derr != nil {
			c.logger.Debug("dropping frame", map[string]any{"error": derr.Error()})
			continue
		}
		if reply != "" {
			if werr := c.writeFrame(ctx, conn, reply); werr != nil {
				c.transportFailed(gen, WrapError(ErrorTransport, "keepalive reply", werr))
				return
			}
			continue
		}
		if ev == nil {
			continue
		}
		c.deliver(ev)
	}
}

// deliver routes a decoded event. While a handshake is in flight the ack
// and an explicit rejection go to the waiting Connect instead of the
// dispatcher.
func (c *Client) deliver(ev Event) {
	c.mu.Lock()
	ch := c.authCh
	c.mu.Unlock()
	if ch != nil {
		switch e := ev.(type) {
		case ConnectedEvent:
			select {
			case ch <- authResult{userID: e.UserID}:
			default:
			}
			return
		case ServerErrorEvent:
			select {
			case ch <- authResult{err: NewError(ErrorAuthenticationFailed, e.Text)}:
			default:
			}
			return
		}
	}
	c.disp.dispatch(ev)
}

func (c *Client) runHeartbeat(ctx context.Context, gen uint64) {
	hb := &heartbeat{
		interval: c.cfg.HeartbeatInterval,
		send: func(ctx context.Context) error {
			return c.send(ctx, pingText)
		},
		onFailure: func(err error) {
			c.logger.Warn("heartbeat send failed", map[string]any{"error": err.Error()})
			c.transportFailed(gen, WrapError(ErrorTransport, "heartbeat", err))
		},
	}
	hb.run(ctx)
}

// transportFailed handles an unexpected failure of transport generation
// gen: it increments the attempt counter and either schedules a reconnect
// or settles in Failed once attempts are exhausted.
func (c *Client) transportFailed(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if ch := c.authCh; ch != nil {
		// establish may have drained the ack without having nil'ed the
		// channel yet, which would orphan a channel send. pendFail covers
		// that window; the send covers a handshake still waiting.
		c.pendFail = cause
		select {
		case ch <- authResult{err: WrapError(ErrorAuthenticationFailed, "transport failed during handshake", cause)}:
		default:
		}
		c.mu.Unlock()
		return
	}
	if c.state != StateConnected && c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	wasConnected := c.state == StateConnected
	c.authed = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	c.attempts++
	attempt := c.attempts

	if c.policy.exhausted(attempt) {
		reason := WrapError(ErrorMaxReconnectAttempts, "max reconnect attempts reached", cause)
		ev, changed := c.transitionLocked(StateFailed, reason)
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusGoingAway, "giving up")
		}
		if wasConnected {
			c.disp.dispatch(DisconnectedEvent{Reason: cause})
		}
		c.emit(ev, changed)
		return
	}

	delay := c.policy.delay(attempt)
	waitCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	ev, changed := c.transitionLocked(StateReconnecting, cause)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusGoingAway, "transport failure")
	}
	if wasConnected {
		c.disp.dispatch(DisconnectedEvent{Reason: cause})
	}
	c.emit(ev, changed)
	c.logger.Info("scheduling reconnect", map[string]any{"attempt": attempt, "delay": delay.String()})
	go c.reconnectAfter(waitCtx, cancel, delay)
}

// reconnectAfter waits out the backoff delay, then re-runs the full
// connect sequence including re-authentication. The wait is cancelled by
// Disconnect. cancel releases ctx once the cycle is over; by then
// c.cancel points at the next context, or was already called.
func (c *Client) reconnectAfter(ctx context.Context, cancel context.CancelFunc, delay time.Duration) {
	defer cancel()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	err := c.establish(ctx)
	if err == nil {
		return
	}
	if IsAuthenticationFailed(err) || CodeOf(err) == ErrorInvalidConfig {
		// the credential was rejected; retrying with the same one is pointless
		c.mu.Lock()
		if c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		ev, changed := c.transitionLocked(StateFailed, err)
		c.mu.Unlock()
		c.emit(ev, changed)
		return
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.transportFailed(gen, err)
}

// transitionLocked mutates the state; c.mu must be held. The returned
// event must be emitted after the lock is released.
func (c *Client) transitionLocked(s ConnectionState, reason error) (StateEvent, bool) {
	if c.state == s {
		return StateEvent{}, false
	}
	old := c.state
	c.state = s
	return StateEvent{Old: old, New: s, Reason: reason}, true
}

func (c *Client) emit(ev StateEvent, changed bool) {
	if !changed {
		return
	}
	c.logger.Info("connection state changed", map[string]any{"from": ev.Old.String(), "to": ev.New.String()})
	c.disp.dispatchState(ev)
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
