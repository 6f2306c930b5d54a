package gacha

import (
	"context"
	"errors"
	"net/http"

	"card-gacha/internal/allowance"
	"card-gacha/internal/claim"
	"card-gacha/internal/economy"
	"card-gacha/internal/probability"
	"card-gacha/internal/tenant"
	"card-gacha/internal/trade"
)

var ErrInvalidRequest = errors.New("invalid_request")

// MapError maps an engine error to an HTTP status and a stable snake_case
// code shared by every transport.
func MapError(err error) (int, string) {
	var denied *allowance.DeniedError
	switch {
	case errors.As(err, &denied):
		return http.StatusTooManyRequests, allowance.ErrDenied.Error()
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, tenant.ErrInvalidTenant),
		errors.Is(err, economy.ErrInvalidCard),
		errors.Is(err, trade.ErrInvalidProposal):
		return http.StatusBadRequest, codeOf(err)
	case errors.Is(err, economy.ErrCardNotFound),
		errors.Is(err, claim.ErrOfferNotFound),
		errors.Is(err, trade.ErrNotFound):
		return http.StatusNotFound, codeOf(err)
	case errors.Is(err, trade.ErrNotParticipant),
		errors.Is(err, economy.ErrNotOwned):
		return http.StatusForbidden, codeOf(err)
	case errors.Is(err, economy.ErrCardExists),
		errors.Is(err, economy.ErrAlreadyOwned),
		errors.Is(err, economy.ErrAlreadyClaimed),
		errors.Is(err, claim.ErrAlreadyCollected),
		errors.Is(err, trade.ErrInvalidState),
		errors.Is(err, trade.ErrInProgress):
		return http.StatusConflict, codeOf(err)
	case errors.Is(err, claim.ErrOfferExpired),
		errors.Is(err, trade.ErrTimedOut):
		return http.StatusGone, codeOf(err)
	case errors.Is(err, economy.ErrInsufficientFunds),
		errors.Is(err, economy.ErrWishlistFull),
		errors.Is(err, claim.ErrNothingToCollect),
		errors.Is(err, probability.ErrNoCardAvailable):
		return http.StatusUnprocessableEntity, codeOf(err)
	case errors.Is(err, tenant.ErrStorage):
		return http.StatusServiceUnavailable, tenant.ErrStorage.Error()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request_cancelled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var knownErrors = []error{
	ErrInvalidRequest,
	tenant.ErrInvalidTenant,
	economy.ErrInvalidCard,
	economy.ErrCardNotFound,
	economy.ErrCardExists,
	economy.ErrNotOwned,
	economy.ErrAlreadyOwned,
	economy.ErrAlreadyClaimed,
	economy.ErrInsufficientFunds,
	economy.ErrWishlistFull,
	probability.ErrNoCardAvailable,
	claim.ErrOfferNotFound,
	claim.ErrOfferExpired,
	claim.ErrNothingToCollect,
	claim.ErrAlreadyCollected,
	trade.ErrNotFound,
	trade.ErrNotParticipant,
	trade.ErrInvalidState,
	trade.ErrInProgress,
	trade.ErrInvalidProposal,
	trade.ErrTimedOut,
}

func codeOf(err error) string {
	for _, k := range knownErrors {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "internal_error"
}
