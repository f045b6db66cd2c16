package parley

import (
	"encoding/json"
	"strings"
	"time"
)

// Wire protocol: one JSON object per text frame, discriminated by "type".
// Keepalive is the literal text "ping"/"pong", not JSON.
const (
	frameAuth           = "auth"
	frameMessage        = "message"
	frameAck            = "ack"
	frameTyping         = "typing"
	frameStatus         = "status"
	frameUserStatus     = "userStatus"
	frameUserRegistered = "userRegistered"
	frameConnected      = "connected"
	frameError          = "error"

	pingText = "ping"
	pongText = "pong"
)

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type messageOutFrame struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Content    string `json:"content"`
	ChatRoomID string `json:"chatRoomId"`
}

type typingOutFrame struct {
	Type       string `json:"type"`
	ChatRoomID string `json:"chatRoomId"`
	IsTyping   bool   `json:"isTyping"`
}

type messageInFrame struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	ChatRoomID string    `json:"chatRoomId"`
	Timestamp  time.Time `json:"timestamp"`
}

type ackInFrame struct {
	MessageID string `json:"messageId"`
}

type typingInFrame struct {
	UserID     string `json:"userId"`
	ChatRoomID string `json:"chatRoomId"`
	IsTyping   bool   `json:"isTyping"`
}

type statusInFrame struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

type connectedInFrame struct {
	UserID string `json:"userId"`
}

type errorInFrame struct {
	Message string `json:"message"`
}

func encodeAuth(token string) ([]byte, error) {
	data, err := json.Marshal(authFrame{Type: frameAuth, Token: token})
	if err != nil {
		return nil, WrapError(ErrorEncoding, "encode auth frame", err)
	}
	return data, nil
}

func encodeMessage(id, content, roomID string) ([]byte, error) {
	data, err := json.Marshal(messageOutFrame{Type: frameMessage, ID: id, Content: content, ChatRoomID: roomID})
	if err != nil {
		return nil, WrapError(ErrorEncoding, "encode message frame", err)
	}
	return data, nil
}

func encodeTyping(roomID string, isTyping bool) ([]byte, error) {
	data, err := json.Marshal(typingOutFrame{Type: frameTyping, ChatRoomID: roomID, IsTyping: isTyping})
	if err != nil {
		return nil, WrapError(ErrorEncoding, "encode typing frame", err)
	}
	return data, nil
}

// decodeFrame maps one inbound text frame to a typed event.
//
// A nil event with a nil error means the frame demanded no action ("pong",
// or a recognized frame carrying nothing). reply is non-empty when the
// frame requires a literal text response. A non-nil error means the frame
// is dropped as a diagnostic; the connection is never torn down over it.
func decodeFrame(payload string) (ev Event, reply string, err error) {
	switch payload {
	case pingText:
		return nil, pongText, nil
	case pongText:
		return nil, "", nil
	}

	trimmed := strings.TrimSpace(payload)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, "", NewError(ErrorDecoding, "frame is neither keepalive nor JSON")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if uerr := json.Unmarshal([]byte(trimmed), &probe); uerr != nil {
		return nil, "", WrapError(ErrorDecoding, "malformed JSON frame", uerr)
	}

	switch probe.Type {
	case frameMessage:
		var f messageInFrame
		if uerr := json.Unmarshal([]byte(trimmed), &f); uerr != nil {
			return nil, "", WrapError(ErrorDecoding, "malformed message frame", uerr)
		}
		if f.ID == "" || f.SenderID == "" {
			return nil, "", NewError(ErrorDecoding, "message frame missing id or sender")
		}
		return MessageEvent{Message: Message{
			ID:         f.ID,
			SenderID:   f.SenderID,
			SenderName: f.SenderName,
			Content:    f.Content,
			RoomID:     f.ChatRoomID,
			Timestamp:  f.Timestamp,
		}}, "", nil
	case frameAck:
		var f ackInFrame
		if uerr := json.Unmarshal([]byte(trimmed), &f); uerr != nil {
			return nil, "", WrapError(ErrorDecoding, "malformed ack frame", uerr)
		}
		if f.MessageID == "" {
			return nil, "", NewError(ErrorDecoding, "ack frame missing messageId")
		}
		return MessageAckEvent{MessageID: f.MessageID}, "", nil
	case frameTyping:
		var f typingInFrame
		if uerr := json.Unmarshal([]byte(trimmed), &f); uerr != nil {
			return nil, "", WrapError(ErrorDecoding, "malformed typing frame", uerr)
		}
		return TypingEvent{UserID: f.UserID, RoomID: f.ChatRoomID, IsTyping: f.IsTyping}, "", nil
	case frameStatus, frameUserStatus:
		var f statusInFrame
		if uerr := json.Unmarshal([]byte(trimmed), &f); uerr != nil {
			return nil, "", WrapError(ErrorDecoding, "malformed status frame", uerr)
		}
		return PresenceEvent{UserID: f.UserID, IsOnline: f.IsOnline}, "", nil
	case frameUserRegistered:
		return UserRegisteredEvent{}, "", nil
	case frameConnected:
		var f connectedInFrame
		if uerr := json.Unmarshal([]byte(trimmed), &f); uerr != nil {
			return nil, "", WrapError(ErrorDecoding, "malformed connected frame", uerr)
		}
		return ConnectedEvent{UserID: f.UserID}, "", nil
	case frameError:
		var f errorInFrame
		if uerr := json.Unmarshal([]byte(trimmed), &f); uerr != nil {
			return nil, "", WrapError(ErrorDecoding, "malformed error frame", uerr)
		}
		return ServerErrorEvent{Text: f.Message}, "", nil
	case "":
		return nil, "", NewError(ErrorDecoding, "frame missing type field")
	default:
		return nil, "", NewError(ErrorDecoding, "unknown frame type "+probe.Type)
	}
}
