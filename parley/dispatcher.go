package parley

import "sync"

// dispatcher fans inbound events and state changes out to registered
// handlers. Handlers registered after an event was dispatched do not see
// it; there is no replay buffer. Dispatch is synchronous and in order.
type dispatcher struct {
	mu sync.RWMutex

	onEvent          []func(Event)
	onMessage        []func(MessageEvent)
	onAck            []func(MessageAckEvent)
	onTyping         []func(TypingEvent)
	onPresence       []func(PresenceEvent)
	onUserRegistered []func(UserRegisteredEvent)
	onServerError    []func(ServerErrorEvent)
	onConnected      []func(ConnectedEvent)
	onDisconnected   []func(DisconnectedEvent)
	onState          []func(StateEvent)
}

func (d *dispatcher) addEvent(fn func(Event)) {
	d.mu.Lock()
	d.onEvent = append(d.onEvent, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addMessage(fn func(MessageEvent)) {
	d.mu.Lock()
	d.onMessage = append(d.onMessage, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addAck(fn func(MessageAckEvent)) {
	d.mu.Lock()
	d.onAck = append(d.onAck, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addTyping(fn func(TypingEvent)) {
	d.mu.Lock()
	d.onTyping = append(d.onTyping, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addPresence(fn func(PresenceEvent)) {
	d.mu.Lock()
	d.onPresence = append(d.onPresence, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addUserRegistered(fn func(UserRegisteredEvent)) {
	d.mu.Lock()
	d.onUserRegistered = append(d.onUserRegistered, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addServerError(fn func(ServerErrorEvent)) {
	d.mu.Lock()
	d.onServerError = append(d.onServerError, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addConnected(fn func(ConnectedEvent)) {
	d.mu.Lock()
	d.onConnected = append(d.onConnected, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addDisconnected(fn func(DisconnectedEvent)) {
	d.mu.Lock()
	d.onDisconnected = append(d.onDisconnected, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addState(fn func(StateEvent)) {
	d.mu.Lock()
	d.onState = append(d.onState, fn)
	d.mu.Unlock()
}

func (d *dispatcher) dispatch(ev Event) {
	d.mu.RLock()
	generic := d.onEvent
	var typed []func()
	switch e := ev.(type) {
	case MessageEvent:
		for _, fn := range d.onMessage {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case MessageAckEvent:
		for _, fn := range d.onAck {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case TypingEvent:
		for _, fn := range d.onTyping {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case PresenceEvent:
		for _, fn := range d.onPresence {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case UserRegisteredEvent:
		for _, fn := range d.onUserRegistered {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case ServerErrorEvent:
		for _, fn := range d.onServerError {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case ConnectedEvent:
		for _, fn := range d.onConnected {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	case DisconnectedEvent:
		for _, fn := range d.onDisconnected {
			fn := fn
			typed = append(typed, func() { fn(e) })
		}
	}
	d.mu.RUnlock()

	for _, fn := range generic {
		fn(ev)
	}
	for _, call := range typed {
		call()
	}
}

func (d *dispatcher) dispatchState(ev StateEvent) {
	d.mu.RLock()
	handlers := d.onState
	d.mu.RUnlock()
	for _, fn := range handlers {
		fn(ev)
	}
}
