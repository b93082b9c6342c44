package escrow

import "errors"

var (
	// ErrAmountBelowMinimum rejects orders under the configured floor.
	ErrAmountBelowMinimum = errors.New("escrow: amount below minimum order size")

	// ErrInvalidDirection rejects directions outside the two-variant set.
	ErrInvalidDirection = errors.New("escrow: invalid direction")

	// ErrExpirationInPast rejects expirations at or before the current tick.
	ErrExpirationInPast = errors.New("escrow: expiration tick is in the past")

	// ErrExpirationTooFar rejects expirations beyond the configured window.
	ErrExpirationTooFar = errors.New("escrow: expiration tick too far in the future")

	// ErrOrderExists rejects a create while a live order already occupies
	// the derived (maker, amount) identity.
	ErrOrderExists = errors.New("escrow: live order already exists for this maker and amount")

	// ErrOrderNotFound is returned for operations on a destroyed or
	// never-created order.
	ErrOrderNotFound = errors.New("escrow: order not found")

	// ErrOrderAlreadyFilled rejects fill or cancel of a filled order.
	ErrOrderAlreadyFilled = errors.New("escrow: order already filled")

	// ErrOrderExpired rejects fills past the order's expiration tick.
	ErrOrderExpired = errors.New("escrow: order expired")

	// ErrUnauthorized rejects cancels by anyone but the maker.
	ErrUnauthorized = errors.New("escrow: only the maker may perform this action")
)
