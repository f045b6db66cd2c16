package parley

import "testing"

func TestDispatchFansOutToAllHandlers(t *testing.T) {
	var d dispatcher
	var first, second MessageEvent
	var generic Event
	d.addMessage(func(ev MessageEvent) { first = ev })
	d.addMessage(func(ev MessageEvent) { second = ev })
	d.addEvent(func(ev Event) { generic = ev })

	d.dispatch(MessageEvent{Message: Message{ID: "m1", SenderID: "u1", Content: "hi"}})

	if first.Message.ID != "m1" || second.Message.ID != "m1" {
		t.Fatalf("fan-out missed a handler: %+v / %+v", first, second)
	}
	if _, ok := generic.(MessageEvent); !ok {
		t.Fatalf("generic handler got %T", generic)
	}
}

func TestLateSubscriberMissesPastEvents(t *testing.T) {
	var d dispatcher
	d.dispatch(MessageEvent{Message: Message{ID: "m1"}})

	var seen int
	d.addMessage(func(MessageEvent) { seen++ })
	if seen != 0 {
		t.Fatalf("late subscriber replayed %d events", seen)
	}

	d.dispatch(MessageEvent{Message: Message{ID: "m2"}})
	if seen != 1 {
		t.Fatalf("late subscriber saw %d events, want 1", seen)
	}
}

func TestDispatchRoutesByEventType(t *testing.T) {
	var d dispatcher
	var typing, presence, serverErr, registered int
	d.addTyping(func(TypingEvent) { typing++ })
	d.addPresence(func(PresenceEvent) { presence++ })
	d.addServerError(func(ServerErrorEvent) { serverErr++ })
	d.addUserRegistered(func(UserRegisteredEvent) { registered++ })

	d.dispatch(TypingEvent{UserID: "u1", RoomID: "r1", IsTyping: true})
	d.dispatch(PresenceEvent{UserID: "u1", IsOnline: true})
	d.dispatch(ServerErrorEvent{Text: "boom"})
	d.dispatch(UserRegisteredEvent{})
	d.dispatch(MessageAckEvent{MessageID: "m1"}) // no handler registered: dropped

	if typing != 1 || presence != 1 || serverErr != 1 || registered != 1 {
		t.Fatalf("routing: typing=%d presence=%d err=%d registered=%d", typing, presence, serverErr, registered)
	}
}

func TestDispatchState(t *testing.T) {
	var d dispatcher
	var got []StateEvent
	d.addState(func(ev StateEvent) { got = append(got, ev) })

	d.dispatchState(StateEvent{Old: StateDisconnected, New: StateConnecting})
	d.dispatchState(StateEvent{Old: StateConnecting, New: StateConnected})

	if len(got) != 2 || got[1].New != StateConnected {
		t.Fatalf("state stream: %+v", got)
	}
}
