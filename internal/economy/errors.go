package economy

import "errors"

var (
	ErrCardNotFound      = errors.New("card_not_found")
	ErrCardExists        = errors.New("card_exists")
	ErrInvalidCard       = errors.New("invalid_card")
	ErrNotOwned          = errors.New("not_owned")
	ErrAlreadyClaimed    = errors.New("card_already_claimed")
	ErrAlreadyOwned      = errors.New("card_already_owned")
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrWishlistFull      = errors.New("wishlist_full")
	ErrInconsistent      = errors.New("inconsistent_snapshot")
)
