package trade

import (
	"context"
	"time"
)

func (e *Escrow) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Sweep(ctx, e.now().UTC())
			}
		}
	}()
}

// Sweep times out lapsed negotiations and discards terminal ones once the
// retention window has passed. Tenants are swept one book at a time.
func (e *Escrow) Sweep(ctx context.Context, now time.Time) (timedOut, purged int) {
	var expired []Negotiation
	live := 0
	for _, b := range e.allBooks() {
		x, p, n := b.sweep(now, e.retention)
		expired = append(expired, x...)
		purged += p
		live += n
	}
	metricLive.Set(int64(live))

	e.emitTimeouts(ctx, expired)
	return len(expired), purged
}

func (b *tradeBook) sweep(now time.Time, retention time.Duration) (expired []Negotiation, purged, live int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, n := range b.trades {
		if b.timeoutLocked(n, now) {
			expired = append(expired, n.view())
		}
		if n.Terminal() && !now.Before(n.closedAt.Add(retention)) {
			delete(b.trades, id)
			purged++
		}
	}
	return expired, purged, len(b.trades)
}
