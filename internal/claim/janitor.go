package claim

import (
	"context"
	"time"
)

// StartJanitor expires lapsed offers and purges closed ones after the
// retention window.
func (a *Arbitrator) StartJanitor(ctx context.Context, interval time.Duration) {
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
				a.Sweep(a.now())
			}
		}
	}()
}

// Sweep returns the number of offers expired and purged at now. Each tenant's
// book is locked on its own, one at a time.
func (a *Arbitrator) Sweep(now time.Time) (expired, purged int) {
	live := 0
	for _, b := range a.allBooks() {
		e, p, n := b.sweep(now, a.retention)
		expired += e
		purged += p
		live += n
	}
	if expired > 0 {
		metricOffersExpired.Add(int64(expired))
	}
	if purged > 0 {
		metricOffersPurged.Add(int64(purged))
	}
	metricOffersLive.Set(int64(live))
	return expired, purged
}

func (b *offerBook) sweep(now time.Time, retention time.Duration) (expired, purged, live int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, e := range b.offers {
		if e.closedAt.IsZero() && !now.Before(e.ExpiresAt) {
			if e.State == StateOpen {
				e.State = StateExpired
				expired++
			}
			e.closedAt = e.ExpiresAt
		}
		if !e.closedAt.IsZero() && !now.Before(e.closedAt.Add(retention)) {
			delete(b.offers, id)
			key := channelKey(e.ChannelID, e.RolledBy)
			if b.byChannel[key] == id {
				delete(b.byChannel, key)
			}
			purged++
		}
	}
	return expired, purged, len(b.offers)
}
