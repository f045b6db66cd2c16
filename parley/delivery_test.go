package parley

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []sentFrame
	err  error
}

type sentFrame struct {
	id      string
	content string
	roomID  string
}

func (f *fakeSender) SendMessage(_ context.Context, id, content, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentFrame{id: id, content: content, roomID: roomID})
	return f.err
}

func (f *fakeSender) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSender) sentFrames() []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentFrame(nil), f.sent...)
}

// waitDelivery polls until the message reaches state, failing the test on
// timeout. Submit and Retry attempt the transport send asynchronously.
func waitDelivery(t *testing.T, tr *Tracker, id string, state DeliveryState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m, ok := tr.Message(id); ok && m.Delivery == state {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	m, _ := tr.Message(id)
	t.Fatalf("message %s stuck in %s, want %s", id, m.Delivery, state)
}

func TestSubmitThenAckDelivers(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTracker(sender, "r1", "me")

	m := tr.Submit(context.Background(), "hi")
	if m.Delivery != DeliverySending {
		t.Fatalf("initial state = %s, want sending", m.Delivery)
	}
	if m.RoomID != "r1" || m.SenderID != "me" || m.ID == "" {
		t.Fatalf("unexpected message: %+v", m)
	}
	waitDelivery(t, tr, m.ID, DeliverySent)

	tr.HandleEvent(MessageAckEvent{MessageID: m.ID})
	waitDelivery(t, tr, m.ID, DeliveryDelivered)

	if got := len(tr.Messages()); got != 1 {
		t.Fatalf("message count = %d, want 1", got)
	}
	if got := tr.PendingCount(); got != 0 {
		t.Fatalf("pending count = %d, want 0", got)
	}
}

func TestEchoResolvesInPlace(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTracker(sender, "r1", "me")

	m := tr.Submit(context.Background(), "hi")
	waitDelivery(t, tr, m.ID, DeliverySent)

	echoed := time.Now().Add(time.Second).Truncate(time.Millisecond)
	tr.HandleEvent(MessageEvent{Message: Message{
		ID:        m.ID,
		SenderID:  "me",
		Content:   "hi",
		RoomID:    "r1",
		Timestamp: echoed,
	}})

	if got := len(tr.Messages()); got != 1 {
		t.Fatalf("echo duplicated the message: count = %d", got)
	}
	got, _ := tr.Message(m.ID)
	if got.Delivery != DeliveryDelivered {
		t.Fatalf("state = %s, want delivered", got.Delivery)
	}
	if !got.Timestamp.Equal(echoed) {
		t.Fatalf("timestamp not adopted from echo: %v", got.Timestamp)
	}
}

func TestForeignRoomEventIgnored(t *testing.T) {
	tr := NewTracker(&fakeSender{}, "r1", "me")
	tr.HandleEvent(MessageEvent{Message: Message{ID: "x1", SenderID: "u2", RoomID: "r2", Content: "elsewhere"}})
	if got := len(tr.Messages()); got != 0 {
		t.Fatalf("foreign-room message appended: count = %d", got)
	}
}

func TestRemoteMessageAppendedOnce(t *testing.T) {
	tr := NewTracker(&fakeSender{}, "r1", "me")
	ev := MessageEvent{Message: Message{ID: "x1", SenderID: "u2", SenderName: "bob", RoomID: "r1", Content: "hey"}}
	tr.HandleEvent(ev)
	tr.HandleEvent(ev) // redelivery must not duplicate
	msgs := tr.Messages()
	if len(msgs) != 1 {
		t.Fatalf("count = %d, want 1", len(msgs))
	}
	if msgs[0].Delivery != DeliveryDelivered {
		t.Fatalf("inbound message state = %s, want delivered", msgs[0].Delivery)
	}
}

func TestOwnMessageFromAnotherSessionAppended(t *testing.T) {
	// sender matches but the id is unknown: authored on another device,
	// not an echo of a pending send
	tr := NewTracker(&fakeSender{}, "r1", "me")
	tr.HandleEvent(MessageEvent{Message: Message{ID: "x1", SenderID: "me", RoomID: "r1", Content: "from my phone"}})
	if got := len(tr.Messages()); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestSendFailureThenRetry(t *testing.T) {
	sender := &fakeSender{}
	sender.setErr(NewError(ErrorNotConnected, "session is not authenticated"))
	tr := NewTracker(sender, "r1", "me")

	m := tr.Submit(context.Background(), "hi")
	waitDelivery(t, tr, m.ID, DeliveryFailed)

	got, _ := tr.Message(m.ID)
	if !IsNotConnected(got.DeliveryErr) {
		t.Fatalf("failure cause = %v", got.DeliveryErr)
	}

	sender.setErr(nil)
	if !tr.Retry(context.Background(), m.ID) {
		t.Fatalf("retry refused for failed message")
	}
	waitDelivery(t, tr, m.ID, DeliverySent)

	frames := sender.sentFrames()
	if len(frames) != 2 {
		t.Fatalf("send attempts = %d, want 2", len(frames))
	}
	if frames[0].id != m.ID || frames[1].id != m.ID {
		t.Fatalf("retry changed the id: %+v", frames)
	}
	if frames[1].content != "hi" || frames[1].roomID != "r1" {
		t.Fatalf("retry changed the payload: %+v", frames[1])
	}
}

func TestRetryOnNonFailedIsNoop(t *testing.T) {
	sender := &fakeSender{}
	tr := NewTracker(sender, "r1", "me")

	m := tr.Submit(context.Background(), "hi")
	waitDelivery(t, tr, m.ID, DeliverySent)

	if tr.Retry(context.Background(), m.ID) {
		t.Fatalf("retry accepted for sent message")
	}
	if tr.Retry(context.Background(), "no-such-id") {
		t.Fatalf("retry accepted for unknown id")
	}
	if got := len(sender.sentFrames()); got != 1 {
		t.Fatalf("send attempts = %d, want 1", got)
	}
}

func TestAckRacingSendKeepsDelivered(t *testing.T) {
	sender := &fakeSender{}
	sender.setErr(errors.New("late transport failure"))
	tr := NewTracker(sender, "r1", "me")

	m := tr.Submit(context.Background(), "hi")
	// the ack can land before the transport attempt reports back
	tr.HandleEvent(MessageAckEvent{MessageID: m.ID})
	waitDelivery(t, tr, m.ID, DeliveryDelivered)

	time.Sleep(50 * time.Millisecond)
	got, _ := tr.Message(m.ID)
	if got.Delivery != DeliveryDelivered {
		t.Fatalf("late send result overwrote delivered: %s", got.Delivery)
	}
}
