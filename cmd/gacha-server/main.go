package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"card-gacha/internal/allowance"
	"card-gacha/internal/app/gacha"
	"card-gacha/internal/claim"
	"card-gacha/internal/config"
	"card-gacha/internal/logging"
	"card-gacha/internal/notify"
	"card-gacha/internal/probability"
	"card-gacha/internal/seed"
	"card-gacha/internal/store"
	"card-gacha/internal/tenant"
	"card-gacha/internal/trade"
	httptransport "card-gacha/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg.Server)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Server.StoreDriver).Msg("store init failed")
	}
	defer backend.Close()
	if err := backend.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("store ping failed")
	}

	var regOpts []tenant.Option
	if cfg.Server.CatalogSeedPath != "" {
		catalog, err := seed.Load(cfg.Server.CatalogSeedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Server.CatalogSeedPath).Msg("load catalog seed failed")
		}
		log.Info().Int("cards", len(catalog.Cards)).Msg("catalog seed loaded")
		regOpts = append(regOpts, tenant.WithInitializer(catalog.Initializer()))
	}
	reg := tenant.NewRegistry(backend, regOpts...)

	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Server.TradeWebhookURL != "" {
		hook := notify.NewWebhook(notify.WebhookConfig{
			URL:      cfg.Server.TradeWebhookURL,
			RetryMax: 3,
			Timeout:  5 * time.Second,
		})
		hook.Start(ctx)
		defer hook.Close()
		notifiers = append(notifiers, hook)
	}

	eco := cfg.Economy
	sched := allowance.NewScheduler(eco)
	engine := probability.NewEngine(probability.Pricing{Base: eco.LuckBaseCost, Doublings: eco.LuckDoublings, Step: eco.LuckLinearStep})
	arb := claim.New(reg, sched, eco, claim.WithNotifier(notifiers))
	esc := trade.New(reg, eco, trade.WithNotifier(notifiers))
	svc := gacha.NewService(reg, sched, engine, arb, esc, eco)

	allowance.NewSweeper(sched, reg, eco.SweepInterval).Start(ctx)
	arb.StartJanitor(ctx, eco.JanitorInterval)
	esc.StartJanitor(ctx, eco.JanitorInterval)

	r := httptransport.NewRouter(svc, backend, cfg.Server)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Str("store", cfg.Server.StoreDriver).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}
