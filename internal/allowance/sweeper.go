package allowance

import (
	"context"
	"time"

	"card-gacha/internal/economy"
	"card-gacha/internal/tenant"

	"github.com/rs/zerolog/log"
)

// TenantStore is the part of the tenant registry the sweeper needs.
type TenantStore interface {
	Tenants() []string
	Update(ctx context.Context, tenantID string, fn func(*economy.Snapshot) error) error
}

// Sweeper proactively resets counters of every loaded tenant at each
// boundary. Counters are also refreshed lazily on access, so a missed sweep
// (for example across a restart) never leaves a stale counter.
type Sweeper struct {
	sched    *Scheduler
	tenants  TenantStore
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(sched *Scheduler, tenants TenantStore, interval time.Duration) *Sweeper {
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	return &Sweeper{sched: sched, tenants: tenants, interval: interval, now: time.Now}
}

// Start runs the sweep loop in a goroutine until ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run wakes at the earlier of the next boundary and the sweep interval. The
// boundary is recomputed from the wall clock on every cycle.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		wait := s.nextWait(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if n, err := s.SweepOnce(ctx, s.now()); err != nil {
			log.Error().Err(err).Msg("allowance sweep failed")
		} else if n > 0 {
			log.Info().Int("players_reset", n).Msg("allowance sweep")
		}
	}
}

func (s *Sweeper) nextWait(now time.Time) time.Duration {
	wait := s.sched.NextReset(now).Sub(now)
	if wait > s.interval {
		wait = s.interval
	}
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// SweepOnce refreshes every player of every loaded tenant and returns how many
// players changed. Tenants with nothing to reset are not saved.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	total := 0
	var firstErr error
	for _, id := range s.tenants.Tenants() {
		n := 0
		err := s.tenants.Update(ctx, id, func(snap *economy.Snapshot) error {
			for _, pid := range snap.Players() {
				p, _ := snap.Player(pid)
				if s.sched.Refresh(p, now) {
					n++
				}
			}
			if n == 0 {
				return tenant.ErrUnchanged
			}
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", id).Msg("allowance sweep skipped tenant")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	metricSweeps.Add(1)
	metricPlayersReset.Add(int64(total))
	return total, firstErr
}
