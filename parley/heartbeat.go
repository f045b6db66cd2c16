package parley

import (
	"context"
	"time"
)

// heartbeat sends keepalive pings at a fixed interval for as long as the
// session stays up. A send failure stops the loop and is reported through
// onFailure, which feeds the same reconnect path as a read failure.
type heartbeat struct {
	interval  time.Duration
	send      func(context.Context) error
	onFailure func(error)
}

func (h *heartbeat) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.send(ctx); err != nil {
				h.onFailure(err)
				return
			}
		}
	}
}
