package parley

import (
	"sync"
	"testing"
	"time"
)

type typingRecorder struct {
	mu    sync.Mutex
	start time.Time
	emits []typingEmit
}

type typingEmit struct {
	isTyping bool
	at       time.Duration
}

func newTypingRecorder() *typingRecorder {
	return &typingRecorder{start: time.Now()}
}

func (r *typingRecorder) emit(isTyping bool) {
	r.mu.Lock()
	r.emits = append(r.emits, typingEmit{isTyping: isTyping, at: time.Since(r.start)})
	r.mu.Unlock()
}

func (r *typingRecorder) snapshot() []typingEmit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]typingEmit(nil), r.emits...)
}

func TestDebounceKeystrokesWithinQuietPeriod(t *testing.T) {
	rec := newTypingRecorder()
	d := NewTypingDebouncer(200*time.Millisecond, rec.emit)

	d.TextChanged("h")
	time.Sleep(100 * time.Millisecond)
	d.TextChanged("hi") // resets the quiet-period timer

	// the first timer would have fired at 200ms; the reset pushes the
	// stop to ~300ms
	time.Sleep(120 * time.Millisecond) // t ≈ 220ms
	for _, e := range rec.snapshot() {
		if !e.isTyping {
			t.Fatalf("stop emitted at %v, before the reset quiet period elapsed", e.at)
		}
	}

	time.Sleep(280 * time.Millisecond) // t ≈ 500ms
	emits := rec.snapshot()
	var stops, starts int
	for _, e := range emits {
		if e.isTyping {
			starts++
		} else {
			stops++
			if e.at < 280*time.Millisecond {
				t.Fatalf("stop emitted at %v, want after ~300ms", e.at)
			}
		}
	}
	if starts != 1 {
		t.Fatalf("start emissions = %d, want 1 per burst", starts)
	}
	if stops != 1 {
		t.Fatalf("stop emissions = %d, want exactly 1", stops)
	}
	if !emits[0].isTyping {
		t.Fatalf("first emission was a stop")
	}
}

func TestDebounceEmptyBufferStopsImmediately(t *testing.T) {
	rec := newTypingRecorder()
	d := NewTypingDebouncer(200*time.Millisecond, rec.emit)

	d.TextChanged("h")
	d.TextChanged("")

	emits := rec.snapshot()
	if len(emits) != 2 || !emits[0].isTyping || emits[1].isTyping {
		t.Fatalf("unexpected emissions: %+v", emits)
	}
	if emits[1].at > 100*time.Millisecond {
		t.Fatalf("stop for empty buffer was deferred: %v", emits[1].at)
	}

	// the cancelled timer must not fire a second stop later
	time.Sleep(300 * time.Millisecond)
	if got := len(rec.snapshot()); got != 2 {
		t.Fatalf("emissions = %d after quiet period, want 2", got)
	}
}

func TestDebounceEmptyBufferWhileIdleEmitsNothing(t *testing.T) {
	rec := newTypingRecorder()
	d := NewTypingDebouncer(100*time.Millisecond, rec.emit)
	d.TextChanged("")
	if got := len(rec.snapshot()); got != 0 {
		t.Fatalf("emissions = %d, want 0", got)
	}
}

func TestDebounceStopWithdrawsIndicator(t *testing.T) {
	rec := newTypingRecorder()
	d := NewTypingDebouncer(time.Minute, rec.emit)
	d.TextChanged("h")
	d.Stop()
	emits := rec.snapshot()
	if len(emits) != 2 || emits[1].isTyping {
		t.Fatalf("unexpected emissions: %+v", emits)
	}
	d.Stop() // idempotent
	if got := len(rec.snapshot()); got != 2 {
		t.Fatalf("emissions = %d after repeat stop, want 2", got)
	}
}

func TestDebounceNewBurstAfterStop(t *testing.T) {
	rec := newTypingRecorder()
	d := NewTypingDebouncer(60*time.Millisecond, rec.emit)

	d.TextChanged("h")
	time.Sleep(150 * time.Millisecond)
	d.TextChanged("again")
	time.Sleep(150 * time.Millisecond)

	emits := rec.snapshot()
	want := []bool{true, false, true, false}
	if len(emits) != len(want) {
		t.Fatalf("emissions = %+v, want %v", emits, want)
	}
	for i, w := range want {
		if emits[i].isTyping != w {
			t.Fatalf("emission %d = %v, want %v", i, emits[i].isTyping, w)
		}
	}
}
