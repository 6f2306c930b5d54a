package allowance

import (
	"context"
	"errors"
	"testing"
	"time"

	"card-gacha/internal/config"
	"card-gacha/internal/economy"
	"card-gacha/internal/store"
	"card-gacha/internal/tenant"
)

func at(h, m, s int) time.Time {
	return time.Date(2026, 5, 1, h, m, s, 0, time.UTC)
}

func TestPeriodStartAlignment(t *testing.T) {
	cases := []struct {
		now    time.Time
		period time.Duration
		want   time.Time
	}{
		{at(4, 59, 59), time.Hour, at(4, 0, 0)},
		{at(4, 59, 59), 3 * time.Hour, at(3, 0, 0)},
		{at(3, 0, 0), 3 * time.Hour, at(3, 0, 0)},
		{at(2, 59, 59), 3 * time.Hour, at(0, 0, 0)},
		{at(23, 30, 0), 6 * time.Hour, at(18, 0, 0)},
		// Local offsets are normalized to UTC before aligning.
		{time.Date(2026, 5, 1, 7, 30, 0, 0, time.FixedZone("UTC+3", 3*3600)), 3 * time.Hour, at(3, 0, 0)},
	}
	for _, tc := range cases {
		if got := PeriodStart(tc.now, tc.period); !got.Equal(tc.want) {
			t.Fatalf("PeriodStart(%s, %s) = %s, want %s", tc.now, tc.period, got, tc.want)
		}
	}
	if got := NextBoundary(at(23, 30, 0), 3*time.Hour); !got.Equal(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("NextBoundary across midnight = %s", got)
	}
}

func TestRollsDeniedAfterCap(t *testing.T) {
	s := NewScheduler(config.DefaultEconomy())
	p := economy.NewPlayer("p1", at(10, 0, 0))
	now := at(10, 15, 0)
	for i := 0; i < 5; i++ {
		if err := s.CheckAndConsume(p, Rolls, now); err != nil {
			t.Fatalf("roll %d: %v", i+1, err)
		}
		if p.Rolls.Remaining != 4-i {
			t.Fatalf("after roll %d remaining = %d", i+1, p.Rolls.Remaining)
		}
	}
	err := s.CheckAndConsume(p, Rolls, now)
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("6th roll err = %v, want ErrDenied", err)
	}
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.RetryAfter != 45*time.Minute || denied.Counter != Rolls {
		t.Fatalf("denied = %+v, want retry after 45m", denied)
	}
	if p.Rolls.Remaining != 0 {
		t.Fatalf("remaining went negative: %d", p.Rolls.Remaining)
	}

	// The next hour refills to cap and never above.
	if got := s.Remaining(p, Rolls, at(11, 0, 0)); got != 5 {
		t.Fatalf("remaining after boundary = %d, want 5", got)
	}
	if s.Refresh(p, at(11, 30, 0)) {
		t.Fatal("refresh within the same period reported a change")
	}
	if p.Rolls.Remaining != 5 {
		t.Fatalf("remaining = %d, want cap", p.Rolls.Remaining)
	}
}

func TestClaimsResetOnThreeHourBoundary(t *testing.T) {
	s := NewScheduler(config.DefaultEconomy())
	p := economy.NewPlayer("p1", at(1, 0, 0))
	if err := s.CheckAndConsume(p, Claims, at(1, 10, 0)); err != nil {
		t.Fatalf("claim: %v", err)
	}
	err := s.Check(p, Claims, at(2, 59, 0))
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.RetryAfter != time.Minute {
		t.Fatalf("check before boundary = %v", err)
	}
	if err := s.Check(p, Claims, at(3, 0, 0)); err != nil {
		t.Fatalf("check at boundary: %v", err)
	}
}

func TestConsumeBelowZeroIsError(t *testing.T) {
	s := NewScheduler(config.DefaultEconomy())
	p := economy.NewPlayer("p1", at(1, 0, 0))
	now := at(1, 0, 0)
	if err := s.Consume(p, Claims, now); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := s.Consume(p, Claims, now); !errors.Is(err, ErrExhausted) {
		t.Fatalf("second consume err = %v, want ErrExhausted", err)
	}
	if err := s.Check(p, Counter("coffee"), now); !errors.Is(err, ErrUnknownCounter) {
		t.Fatalf("unknown counter err = %v", err)
	}
}

func TestRefreshClampsLoweredCap(t *testing.T) {
	s := NewScheduler(config.DefaultEconomy())
	p := economy.NewPlayer("p1", at(1, 0, 0))
	p.Rolls = economy.Allowance{Remaining: 9, PeriodStart: at(1, 0, 0)}
	if !s.Refresh(p, at(1, 5, 0)) {
		t.Fatal("refresh should report clamping as a change")
	}
	if p.Rolls.Remaining != 5 {
		t.Fatalf("remaining = %d, want 5", p.Rolls.Remaining)
	}
}

func TestSweepOnceResetsLoadedTenants(t *testing.T) {
	reg := tenant.NewRegistry(store.NewMemory())
	sched := NewScheduler(config.DefaultEconomy())
	ctx := context.Background()

	err := reg.Update(ctx, "g", func(s *economy.Snapshot) error {
		for _, id := range []string{"p1", "p2"} {
			p, _ := s.EnsurePlayer(id, at(9, 0, 0))
			if err := sched.CheckAndConsume(p, Rolls, at(9, 10, 0)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	sw := NewSweeper(sched, reg, time.Minute)
	n, err := sw.SweepOnce(ctx, at(9, 30, 0))
	if err != nil || n != 0 {
		t.Fatalf("sweep inside period = %d, %v; want 0", n, err)
	}
	n, err = sw.SweepOnce(ctx, at(10, 0, 1))
	if err != nil || n != 2 {
		t.Fatalf("sweep after boundary = %d, %v; want 2", n, err)
	}
	n, _ = sw.SweepOnce(ctx, at(10, 0, 2))
	if n != 0 {
		t.Fatalf("repeated sweep reset %d players, want 0", n)
	}

	_ = reg.View(ctx, "g", func(s *economy.Snapshot) error {
		for _, id := range s.Players() {
			p, _ := s.Player(id)
			if p.Rolls.Remaining != 5 {
				t.Fatalf("%s rolls = %d, want 5", id, p.Rolls.Remaining)
			}
		}
		return nil
	})
}

func TestNewPlayerStartsAtCap(t *testing.T) {
	s := NewScheduler(config.DefaultEconomy())
	p := economy.NewPlayer("late", at(10, 59, 0))
	if got := s.Remaining(p, Rolls, at(10, 59, 30)); got != 5 {
		t.Fatalf("new player rolls = %d, want 5", got)
	}
	if got := s.Remaining(p, Claims, at(10, 59, 30)); got != 1 {
		t.Fatalf("new player claims = %d, want 1", got)
	}
}

func TestNextWaitRecomputedFromClock(t *testing.T) {
	sw := NewSweeper(NewScheduler(config.DefaultEconomy()), tenant.NewRegistry(store.NewMemory()), time.Minute)
	if got := sw.nextWait(at(10, 59, 30)); got != 30*time.Second {
		t.Fatalf("nextWait near boundary = %s, want 30s", got)
	}
	if got := sw.nextWait(at(10, 10, 0)); got != time.Minute {
		t.Fatalf("nextWait mid-period = %s, want 1m", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sw := NewSweeper(NewScheduler(config.DefaultEconomy()), tenant.NewRegistry(store.NewMemory()), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
