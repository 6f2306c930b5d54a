package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"card-gacha/internal/app/gacha"
	"card-gacha/internal/config"
	"card-gacha/internal/mcpserver"
	"card-gacha/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *gacha.Service, backend store.Backend, cfg config.ServerConfig) *chi.Mux {
	playerHandlers := NewPlayerHandlers(svc)
	publicHandlers := NewPublicHandlers(svc)
	adminHandlers := NewAdminHandlers(backend, svc)
	limiter := NewPlayerLimiter(cfg.PlayerRatePerSec, cfg.PlayerRateBurst)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	if cfg.MCPEnabled {
		mcpSrv := mcpserver.New(svc, cfg)
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Route("/tenants/{tenant_id}", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Group(func(r chi.Router) {
				r.Use(ShellAuthMiddleware(cfg.ShellAPIKey))
				r.Get("/cards/top", publicHandlers.TopCards())
				r.Get("/cards/{card_name}", publicHandlers.Card())
				r.Get("/offers/{offer_id}", publicHandlers.Offer())
				r.Get("/trades/{trade_id}", publicHandlers.Trade())
				r.Get("/trades/{trade_id}/wait", publicHandlers.WaitTrade())

				r.Route("/players/{player_id}", func(r chi.Router) {
					r.Use(limiter.Middleware())
					r.Post("/roll", playerHandlers.Roll())
					r.Post("/offers/{offer_id}/claim", playerHandlers.Claim())
					r.Post("/offers/{offer_id}/gems", playerHandlers.CollectGems())
					r.Post("/divorce", playerHandlers.Divorce())
					r.Post("/luck", playerHandlers.BuyLuck())
					r.Get("/probabilities", playerHandlers.Probabilities())
					r.Get("/profile", playerHandlers.Profile())
					r.Get("/collection", playerHandlers.Collection())
					r.Put("/wishlist/{card_name}", playerHandlers.AddWish())
					r.Delete("/wishlist/{card_name}", playerHandlers.RemoveWish())
					r.Post("/trades", playerHandlers.ProposeTrade())
					r.Post("/trades/{trade_id}/counter", playerHandlers.CounterTrade())
					r.Post("/trades/{trade_id}/confirm", playerHandlers.ConfirmTrade())
					r.Post("/trades/{trade_id}/cancel", playerHandlers.CancelTrade())
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
				r.Post("/admin/cards", adminHandlers.AddCard())
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
