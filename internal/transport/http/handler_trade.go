package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *PlayerHandlers) ProposeTrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			To        string   `json:"to"`
			ChannelID string   `json:"channel_id"`
			Cards     []string `json:"cards"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.ProposeTrade(r.Context(), tenantID, playerID, body.To, body.ChannelID, body.Cards)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) CounterTrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cards []string `json:"cards"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.SubmitCounterOffer(r.Context(), tenantID, chi.URLParam(r, "trade_id"), playerID, body.Cards)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) ConfirmTrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Accept *bool `json:"accept"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Accept == nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.ConfirmTrade(r.Context(), tenantID, chi.URLParam(r, "trade_id"), playerID, *body.Accept)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PlayerHandlers) CancelTrade() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, playerID := playerParams(r)
		resp, err := h.svc.CancelTrade(r.Context(), tenantID, chi.URLParam(r, "trade_id"), playerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
