package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"card-gacha/internal/probability"
)

const (
	ClaimChargeSuccess = "success"
	ClaimChargeAttempt = "attempt"
)

// EconomyConfig carries the tunable constants of the card economy.
type EconomyConfig struct {
	RollCap          int `env:"ROLL_CAP" envDefault:"5"`
	RollPeriodHours  int `env:"ROLL_PERIOD_HOURS" envDefault:"1"`
	ClaimCap         int `env:"CLAIM_CAP" envDefault:"1"`
	ClaimPeriodHours int `env:"CLAIM_PERIOD_HOURS" envDefault:"3"`
	GemCap           int `env:"GEM_CAP" envDefault:"1"`
	GemPeriodHours   int `env:"GEM_PERIOD_HOURS" envDefault:"3"`

	OfferWindow    time.Duration `env:"OFFER_WINDOW" envDefault:"45s"`
	OfferRetention time.Duration `env:"OFFER_RETENTION" envDefault:"5m"`
	TradeTimeout   time.Duration `env:"TRADE_TIMEOUT" envDefault:"60s"`
	TradeRetention time.Duration `env:"TRADE_RETENTION" envDefault:"5m"`

	ConsolationPayout int64  `env:"CONSOLATION_PAYOUT" envDefault:"100"`
	ClaimChargePolicy string `env:"CLAIM_CHARGE_POLICY" envDefault:"success"`

	LuckBaseCost   int64 `env:"LUCK_BASE_COST" envDefault:"100"`
	LuckDoublings  int   `env:"LUCK_DOUBLINGS" envDefault:"4"`
	LuckLinearStep int64 `env:"LUCK_LINEAR_STEP" envDefault:"400"`

	SweepInterval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"500ms"`
	WishlistMax     int           `env:"WISHLIST_MAX" envDefault:"3"`
}

func LoadEconomy() (EconomyConfig, error) {
	var cfg EconomyConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func DefaultEconomy() EconomyConfig {
	return EconomyConfig{
		RollCap:           5,
		RollPeriodHours:   1,
		ClaimCap:          1,
		ClaimPeriodHours:  3,
		GemCap:            1,
		GemPeriodHours:    3,
		OfferWindow:       45 * time.Second,
		OfferRetention:    5 * time.Minute,
		TradeTimeout:      60 * time.Second,
		TradeRetention:    5 * time.Minute,
		ConsolationPayout: 100,
		ClaimChargePolicy: ClaimChargeSuccess,
		LuckBaseCost:      100,
		LuckDoublings:     4,
		LuckLinearStep:    400,
		SweepInterval:     time.Minute,
		JanitorInterval:   500 * time.Millisecond,
		WishlistMax:       3,
	}
}

func (c EconomyConfig) Validate() error {
	for name, h := range map[string]int{
		"ROLL_PERIOD_HOURS":  c.RollPeriodHours,
		"CLAIM_PERIOD_HOURS": c.ClaimPeriodHours,
		"GEM_PERIOD_HOURS":   c.GemPeriodHours,
	} {
		if h <= 0 || 24%h != 0 {
			return fmt.Errorf("%s must divide 24, got %d", name, h)
		}
	}
	if c.RollCap < 0 || c.ClaimCap < 0 || c.GemCap < 0 {
		return errors.New("allowance caps must be non-negative")
	}
	if c.OfferWindow <= 0 || c.TradeTimeout <= 0 {
		return errors.New("OFFER_WINDOW and TRADE_TIMEOUT must be positive")
	}
	if c.ConsolationPayout < 0 || c.LuckBaseCost < 0 || c.LuckLinearStep < 0 || c.LuckDoublings < 0 {
		return errors.New("payouts and luck costs must be non-negative")
	}
	if !probability.DoublingFits(c.LuckBaseCost, c.LuckDoublings) {
		return fmt.Errorf("LUCK_BASE_COST %d doubled %d times overflows int64", c.LuckBaseCost, c.LuckDoublings)
	}
	if c.SweepInterval <= 0 || c.SweepInterval > time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be in (0, 1m], got %s", c.SweepInterval)
	}
	switch c.ClaimChargePolicy {
	case ClaimChargeSuccess, ClaimChargeAttempt:
	default:
		return fmt.Errorf("unknown CLAIM_CHARGE_POLICY %q", c.ClaimChargePolicy)
	}
	return nil
}
