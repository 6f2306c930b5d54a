package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"card-gacha/internal/app/gacha"

	"github.com/go-chi/chi/v5"
)

// PlayerHandlers serve actions performed by one player of one tenant. The
// shell authenticates and forwards the player id in the path.
type PlayerHandlers struct {
	svc *gacha.Service
}

func NewPlayerHandlers(svc *gacha.Service) *PlayerHandlers {
	return &PlayerHandlers{svc: svc}
}

func playerParams(r *http.Request) (string, string) {
	return chi.URLParam(r, "tenant_id"), chi.URLParam(r, "player_id")
}

func (h *PlayerHandlers) Roll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChannelID string `json:"channel_id"`
		}
		if err := decodeOptional(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.Roll(r.Context(), tenantID, playerID, body.ChannelID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) Claim() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.Claim(r.Context(), tenantID, playerID, chi.URLParam(r, "offer_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) CollectGems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.CollectGems(r.Context(), tenantID, playerID, chi.URLParam(r, "offer_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) Divorce() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Card string `json:"card"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.Divorce(r.Context(), tenantID, playerID, body.Card)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) BuyLuck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.BuyLuck(r.Context(), tenantID, playerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) Probabilities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.GetProbabilities(r.Context(), tenantID, playerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) Profile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.Profile(r.Context(), tenantID, playerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) Collection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if v := r.URL.Query().Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_page")
				return
			}
			page = n
		}
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.Collection(r.Context(), tenantID, playerID, page)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) AddWish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.AddWish(r.Context(), tenantID, playerID, chi.URLParam(r, "card_name"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) RemoveWish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.RemoveWish(r.Context(), tenantID, playerID, chi.URLParam(r, "card_name"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
