package parley

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeliveryState is the local-only lifecycle of an optimistically sent
// message. Transitions move forward except Failed -> Sending on retry.
type DeliveryState int

const (
	// DeliverySending means the message is displayed but not yet handed
	// to the transport.
	DeliverySending DeliveryState = iota

	// DeliverySent means the transport write succeeded; the server has
	// not confirmed yet.
	DeliverySent

	// DeliveryDelivered means the server acknowledged or echoed the
	// message. Terminal.
	DeliveryDelivered

	// DeliveryFailed means the send failed; the message stays visible
	// with its failure cause and can be retried.
	DeliveryFailed
)

// String returns the string representation of a DeliveryState.
func (s DeliveryState) String() string {
	switch s {
	case DeliverySending:
		return "sending"
	case DeliverySent:
		return "sent"
	case DeliveryDelivered:
		return "delivered"
	case DeliveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sender is the transport a Tracker sends through. *Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, id, content, roomID string) error
}

// Tracker reconciles locally authored, optimistically displayed messages
// with server confirmation, and exposes retry. One Tracker serves one
// room; events for other rooms are ignored.
type Tracker struct {
	sender      Sender
	logger      Logger
	roomID      string
	localUserID string

	mu      sync.Mutex
	order   []string
	byID    map[string]*Message
	pending map[string]*Message
}

// NewTracker constructs a tracker for roomID. localUserID identifies
// server echoes of the local user's own messages.
func NewTracker(sender Sender, roomID, localUserID string) *Tracker {
	return &Tracker{
		sender:      sender,
		logger:      noopLogger{},
		roomID:      roomID,
		localUserID: localUserID,
		byID:        make(map[string]*Message),
		pending:     make(map[string]*Message),
	}
}

// SetLogger overrides the logger (optional).
func (t *Tracker) SetLogger(l Logger) {
	if l != nil {
		t.logger = l
	}
}

// Submit inserts an optimistic message with a fresh id and state Sending,
// then attempts the transport send in the background. The returned copy
// reflects the message at insertion time.
func (t *Tracker) Submit(ctx context.Context, content string) Message {
	m := &Message{
		ID:        uuid.NewString(),
		SenderID:  t.localUserID,
		Content:   content,
		RoomID:    t.roomID,
		Timestamp: time.Now(),
		Delivery:  DeliverySending,
	}
	t.mu.Lock()
	t.order = append(t.order, m.ID)
	t.byID[m.ID] = m
	t.pending[m.ID] = m
	snapshot := *m
	t.mu.Unlock()

	go t.attempt(ctx, m.ID)
	return snapshot
}

// Retry re-issues a Failed message through the identical send path. The
// id is preserved so a later ack still matches. Calling it on a message
// that is not Failed is a no-op; it reports whether a retry was started.
func (t *Tracker) Retry(ctx context.Context, id string) bool {
	t.mu.Lock()
	m, ok := t.byID[id]
	if !ok || m.Delivery != DeliveryFailed {
		t.mu.Unlock()
		return false
	}
	m.Delivery = DeliverySending
	m.DeliveryErr = nil
	t.pending[id] = m
	t.mu.Unlock()

	go t.attempt(ctx, id)
	return true
}

// HandleEvent feeds one inbound event into the tracker. Register it on
// the owning client, or use Client.NewTracker which does so.
func (t *Tracker) HandleEvent(ev Event) {
	switch e := ev.(type) {
	case MessageAckEvent:
		t.mu.Lock()
		if m, ok := t.byID[e.MessageID]; ok {
			m.Delivery = DeliveryDelivered
			m.DeliveryErr = nil
			delete(t.pending, e.MessageID)
		}
		t.mu.Unlock()
	case MessageEvent:
		msg := e.Message
		if msg.RoomID != t.roomID {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if msg.SenderID == t.localUserID {
			if m, ok := t.pending[msg.ID]; ok {
				// echo of our own optimistic send: resolve in place,
				// never append a duplicate
				m.Delivery = DeliveryDelivered
				m.DeliveryErr = nil
				if !msg.Timestamp.IsZero() {
					m.Timestamp = msg.Timestamp
				}
				delete(t.pending, msg.ID)
				return
			}
		}
		if _, ok := t.byID[msg.ID]; ok {
			return
		}
		m := msg
		m.Delivery = DeliveryDelivered
		t.order = append(t.order, m.ID)
		t.byID[m.ID] = &m
	}
}

// Messages returns the room's messages in display order.
func (t *Tracker) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.byID[id])
	}
	return out
}

// Message returns one message by id.
func (t *Tracker) Message(id string) (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byID[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// PendingCount returns the number of messages awaiting confirmation.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) attempt(ctx context.Context, id string) {
	t.mu.Lock()
	m, ok := t.byID[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	content, roomID := m.Content, m.RoomID
	t.mu.Unlock()

	err := t.sender.SendMessage(ctx, id, content, roomID)

	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok = t.byID[id]
	if !ok || m.Delivery == DeliveryDelivered {
		// the ack or echo won the race
		return
	}
	if err != nil {
		m.Delivery = DeliveryFailed
		m.DeliveryErr = err
		t.logger.Warn("message send failed", map[string]any{"id": id, "error": err.Error()})
		return
	}
	if m.Delivery == DeliverySending {
		m.Delivery = DeliverySent
	}
}
