package config

import (
	"testing"
	"time"
)

func TestLoadEconomyDefaults(t *testing.T) {
	cfg, err := LoadEconomy()
	if err != nil {
		t.Fatalf("LoadEconomy() error = %v", err)
	}
	if cfg != DefaultEconomy() {
		t.Fatalf("defaults drifted from DefaultEconomy():\n got=%+v\nwant=%+v", cfg, DefaultEconomy())
	}
	if cfg.OfferWindow != 45*time.Second {
		t.Fatalf("OfferWindow = %s, want 45s", cfg.OfferWindow)
	}
}

func TestLoadEconomyValidation(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "period not dividing day", key: "ROLL_PERIOD_HOURS", value: "5"},
		{name: "zero period", key: "CLAIM_PERIOD_HOURS", value: "0"},
		{name: "unknown charge policy", key: "CLAIM_CHARGE_POLICY", value: "sometimes"},
		{name: "sweep above a minute", key: "SWEEP_INTERVAL", value: "2m"},
		{name: "negative payout", key: "CONSOLATION_PAYOUT", value: "-1"},
		{name: "luck doublings overflow", key: "LUCK_DOUBLINGS", value: "60"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadEconomy(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoadEconomyOverrides(t *testing.T) {
	t.Setenv("CLAIM_CHARGE_POLICY", "attempt")
	t.Setenv("ROLL_PERIOD_HOURS", "2")
	t.Setenv("TRADE_TIMEOUT", "90s")

	cfg, err := LoadEconomy()
	if err != nil {
		t.Fatalf("LoadEconomy() error = %v", err)
	}
	if cfg.ClaimChargePolicy != ClaimChargeAttempt || cfg.RollPeriodHours != 2 || cfg.TradeTimeout != 90*time.Second {
		t.Fatalf("unexpected economy config: %+v", cfg)
	}
}
