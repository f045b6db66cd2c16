package parley

import "time"

// reconnectPolicy computes backoff delays for reconnect attempts.
// It is pure; the attempt counter lives on the Client.
type reconnectPolicy struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
}

// delay returns the wait before attempt n (1-based):
// min(base * 2^(n-1), max).
func (p reconnectPolicy) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.max {
			return p.max
		}
	}
	if d > p.max {
		return p.max
	}
	return d
}

// exhausted reports whether attempt n exceeds the cap.
func (p reconnectPolicy) exhausted(attempt int) bool {
	return attempt > p.maxAttempts
}
