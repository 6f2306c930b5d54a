package allowance

import (
	"errors"
	"fmt"
	"time"

	"card-gacha/internal/config"
	"card-gacha/internal/economy"
)

type Counter string

const (
	Rolls  Counter = "rolls"
	Claims Counter = "claims"
	Gems   Counter = "gems"
)

var (
	ErrDenied         = errors.New("allowance_denied")
	ErrExhausted      = errors.New("allowance_exhausted")
	ErrUnknownCounter = errors.New("unknown_counter")
)

// DeniedError reports an exhausted counter and the wait until its next reset.
type DeniedError struct {
	Counter    Counter
	RetryAfter time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s allowance exhausted, retry after %s", e.Counter, e.RetryAfter.Round(time.Second))
}

func (e *DeniedError) Unwrap() error {
	return ErrDenied
}

type Policy struct {
	Cap    int
	Period time.Duration
}

// Scheduler refills counters to their cap at wall-clock aligned UTC
// boundaries: every hour h with h % periodHours == 0.
type Scheduler struct {
	policies map[Counter]Policy
}

func NewScheduler(cfg config.EconomyConfig) *Scheduler {
	return &Scheduler{policies: map[Counter]Policy{
		Rolls:  {Cap: cfg.RollCap, Period: time.Duration(cfg.RollPeriodHours) * time.Hour},
		Claims: {Cap: cfg.ClaimCap, Period: time.Duration(cfg.ClaimPeriodHours) * time.Hour},
		Gems:   {Cap: cfg.GemCap, Period: time.Duration(cfg.GemPeriodHours) * time.Hour},
	}}
}

func (s *Scheduler) Policy(c Counter) (Policy, bool) {
	p, ok := s.policies[c]
	return p, ok
}

// PeriodStart returns the start of the period containing now.
func PeriodStart(now time.Time, period time.Duration) time.Time {
	t := now.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(t.Sub(day) / period * period)
}

// NextBoundary returns the first reset strictly after now.
func NextBoundary(now time.Time, period time.Duration) time.Time {
	return PeriodStart(now, period).Add(period)
}

// NextReset returns the earliest boundary of any counter after now.
func (s *Scheduler) NextReset(now time.Time) time.Time {
	var next time.Time
	for _, p := range s.policies {
		b := NextBoundary(now, p.Period)
		if next.IsZero() || b.Before(next) {
			next = b
		}
	}
	return next
}

func slot(p *economy.Player, c Counter) *economy.Allowance {
	switch c {
	case Rolls:
		return &p.Rolls
	case Claims:
		return &p.Claims
	case Gems:
		return &p.Gems
	default:
		return nil
	}
}

// Refresh resets every counter whose period has rolled over and clamps any
// counter above its cap. It reports whether the player changed. Running it
// twice in one period is a no-op.
func (s *Scheduler) Refresh(p *economy.Player, now time.Time) bool {
	changed := false
	for c, pol := range s.policies {
		a := slot(p, c)
		start := PeriodStart(now, pol.Period)
		if a.PeriodStart.Before(start) {
			changed = true
			a.Remaining = pol.Cap
			a.PeriodStart = start
		}
		if a.Remaining > pol.Cap {
			a.Remaining = pol.Cap
			changed = true
		}
	}
	return changed
}

// Check returns a *DeniedError when the counter has nothing left.
func (s *Scheduler) Check(p *economy.Player, c Counter, now time.Time) error {
	pol, ok := s.policies[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, c)
	}
	s.Refresh(p, now)
	if slot(p, c).Remaining <= 0 {
		return &DeniedError{Counter: c, RetryAfter: NextBoundary(now, pol.Period).Sub(now)}
	}
	return nil
}

// Consume spends one unit. Consuming an empty counter is an error, so
// callers gate it with Check.
func (s *Scheduler) Consume(p *economy.Player, c Counter, now time.Time) error {
	if _, ok := s.policies[c]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, c)
	}
	s.Refresh(p, now)
	a := slot(p, c)
	if a.Remaining <= 0 {
		return fmt.Errorf("%w: %s", ErrExhausted, c)
	}
	a.Remaining--
	return nil
}

func (s *Scheduler) CheckAndConsume(p *economy.Player, c Counter, now time.Time) error {
	if err := s.Check(p, c, now); err != nil {
		return err
	}
	return s.Consume(p, c, now)
}

// Remaining returns the refreshed counter value.
func (s *Scheduler) Remaining(p *economy.Player, c Counter, now time.Time) int {
	s.Refresh(p, now)
	if a := slot(p, c); a != nil {
		return a.Remaining
	}
	return 0
}
