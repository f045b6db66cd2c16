package parley

import "time"

// Message is one chat message. For locally authored messages the ID is
// client-generated; inbound messages carry the id assigned by the server.
type Message struct {
	ID         string
	SenderID   string
	SenderName string
	Content    string
	RoomID     string
	Timestamp  time.Time

	// Delivery is local-only bookkeeping maintained by a Tracker.
	// It is never transmitted and is zero on inbound events.
	Delivery    DeliveryState
	DeliveryErr error
}

// Event is the closed set of inbound events produced by the frame codec.
type Event interface {
	isEvent()
}

// MessageEvent emitted when a chat message arrives.
type MessageEvent struct {
	Message Message
}

// MessageAckEvent emitted when the server acknowledges a sent message.
type MessageAckEvent struct {
	MessageID string
}

// TypingEvent emitted when a user starts or stops typing in a room.
type TypingEvent struct {
	UserID   string
	RoomID   string
	IsTyping bool
}

// PresenceEvent emitted when a user goes online or offline.
type PresenceEvent struct {
	UserID   string
	IsOnline bool
}

// UserRegisteredEvent emitted when a new user registers.
type UserRegisteredEvent struct{}

// ServerErrorEvent emitted when the server reports an error over the socket.
type ServerErrorEvent struct {
	Text string
}

// ConnectedEvent emitted once the session is authenticated.
type ConnectedEvent struct {
	UserID string
}

// DisconnectedEvent emitted when the session loses the connection.
type DisconnectedEvent struct {
	Reason error
}

func (MessageEvent) isEvent()        {}
func (MessageAckEvent) isEvent()     {}
func (TypingEvent) isEvent()         {}
func (PresenceEvent) isEvent()       {}
func (UserRegisteredEvent) isEvent() {}
func (ServerErrorEvent) isEvent()    {}
func (ConnectedEvent) isEvent()      {}
func (DisconnectedEvent) isEvent()   {}
