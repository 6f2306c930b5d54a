package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"card-gacha/internal/config"
	"card-gacha/internal/logging"

	"github.com/rs/zerolog/log"
)

type rollResponse struct {
	Card struct {
		Name string `json:"name"`
		Rank string `json:"rank"`
	} `json:"card"`
	Offer struct {
		ID        string `json:"id"`
		Claimable bool   `json:"claimable"`
	} `json:"offer"`
	RollsRemaining int `json:"rolls_remaining"`
}

type claimResponse struct {
	Outcome string `json:"outcome"`
	Payout  int64  `json:"payout"`
	Coins   int64  `json:"coins"`
}

type apiError struct {
	Status     int
	Code       string
	RetryAfter time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Code)
}

type bot struct {
	cfg    config.BotConfig
	client *http.Client
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := &bot{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
	for {
		wait := cfg.Interval
		if err := b.step(ctx); err != nil {
			var ae *apiError
			if errors.As(err, &ae) && ae.RetryAfter > 0 {
				wait = ae.RetryAfter
			}
			log.Warn().Err(err).Dur("wait", wait).Msg("roll step failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// step rolls once and immediately tries to claim what came up.
func (b *bot) step(ctx context.Context) error {
	var roll rollResponse
	if err := b.post(ctx, "roll", map[string]any{"channel_id": b.cfg.ChannelID}, &roll); err != nil {
		return err
	}
	log.Info().Str("card", roll.Card.Name).Str("rank", roll.Card.Rank).Int("rolls_remaining", roll.RollsRemaining).Msg("rolled")
	if !roll.Offer.Claimable {
		return nil
	}
	var res claimResponse
	if err := b.post(ctx, "offers/"+url.PathEscape(roll.Offer.ID)+"/claim", nil, &res); err != nil {
		return err
	}
	log.Info().Str("card", roll.Card.Name).Str("outcome", res.Outcome).Int64("payout", res.Payout).Int64("coins", res.Coins).Msg("claimed")
	return nil
}

func (b *bot) post(ctx context.Context, action string, body any, out any) error {
	endpoint := fmt.Sprintf("%s/api/tenants/%s/players/%s/%s",
		b.cfg.BaseURL, url.PathEscape(b.cfg.TenantID), url.PathEscape(b.cfg.PlayerID), action)
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.ShellAPIKey != "" {
		req.Header.Set("X-Shell-Key", b.cfg.ShellAPIKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		ae := &apiError{Status: resp.StatusCode, Code: e.Error}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			ae.RetryAfter = time.Duration(secs) * time.Second
		}
		return ae
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
