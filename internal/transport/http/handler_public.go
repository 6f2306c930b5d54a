package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"card-gacha/internal/app/gacha"

	"github.com/go-chi/chi/v5"
)

const (
	defaultTradeWait = 25 * time.Second
	maxTradeWait     = 60 * time.Second
)

// PublicHandlers serve tenant-wide reads that need no player identity.
type PublicHandlers struct {
	svc *gacha.Service
}

func NewPublicHandlers(svc *gacha.Service) *PublicHandlers {
	return &PublicHandlers{svc: svc}
}

func (h *PublicHandlers) TopCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.svc.TopCards(r.Context(), chi.URLParam(r, "tenant_id"), limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Card() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetCard(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "card_name"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Offer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetOffer(chi.URLParam(r, "tenant_id"), chi.URLParam(r, "offer_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Trade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.GetTrade(r.Context(), chi.URLParam(r, "tenant_id"), chi.URLParam(r, "trade_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// WaitTrade long-polls a negotiation. When the poll window elapses without
// a change the current state is returned.
func (h *PublicHandlers) WaitTrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wait := defaultTradeWait
		if v := r.URL.Query().Get("timeout"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_timeout")
				return
			}
			wait = min(d, maxTradeWait)
		}
		tenantID, tradeID := chi.URLParam(r, "tenant_id"), chi.URLParam(r, "trade_id")

		metricTradeWaitActive.Add(1)
		defer metricTradeWaitActive.Add(-1)
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		resp, err := h.svc.WaitTrade(ctx, tenantID, tradeID)
		if errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil {
			resp, err = h.svc.GetTrade(r.Context(), tenantID, tradeID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
