package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"card-gacha/internal/app/gacha"
	"card-gacha/internal/store"

	"github.com/go-chi/chi/v5"
)

type AdminHandlers struct {
	backend store.Backend
	svc     *gacha.Service
}

func NewAdminHandlers(backend store.Backend, svc *gacha.Service) *AdminHandlers {
	return &AdminHandlers{backend: backend, svc: svc}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.backend.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "store": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "store": "up"})
	}
}

func (h *AdminHandlers) AddCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body gacha.CardInput
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.AddCard(r.Context(), chi.URLParam(r, "tenant_id"), body)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
