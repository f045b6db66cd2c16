package parley

import (
	"sync"
	"time"
)

// TypingDebouncer converts raw keystroke activity into a start/stop
// typing intent stream. The first keystroke of a burst emits
// isTyping=true; a quiet period after the last keystroke emits
// isTyping=false. Clearing the buffer withdraws the indicator at once.
type TypingDebouncer struct {
	quiet time.Duration
	emit  func(isTyping bool)

	mu     sync.Mutex
	timer  *time.Timer
	typing bool
}

// NewTypingDebouncer constructs a debouncer with the given quiet period.
// emit is called outside the debouncer's lock and may block briefly.
func NewTypingDebouncer(quiet time.Duration, emit func(isTyping bool)) *TypingDebouncer {
	return &TypingDebouncer{quiet: quiet, emit: emit}
}

// TextChanged reports the current compose buffer after a keystroke.
func (d *TypingDebouncer) TextChanged(text string) {
	d.mu.Lock()
	if text == "" {
		stopped := d.stopLocked()
		d.mu.Unlock()
		if stopped {
			d.emit(false)
		}
		return
	}

	started := !d.typing
	d.typing = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.expire)
	d.mu.Unlock()

	if started {
		d.emit(true)
	}
}

// Stop cancels the quiet-period timer and withdraws a live indicator.
func (d *TypingDebouncer) Stop() {
	d.mu.Lock()
	stopped := d.stopLocked()
	d.mu.Unlock()
	if stopped {
		d.emit(false)
	}
}

// stopLocked cancels the timer; it reports whether an isTyping=false
// emission is owed. d.mu must be held.
func (d *TypingDebouncer) stopLocked() bool {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.typing {
		return false
	}
	d.typing = false
	return true
}

func (d *TypingDebouncer) expire() {
	d.mu.Lock()
	if !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.timer = nil
	d.mu.Unlock()
	d.emit(false)
}
