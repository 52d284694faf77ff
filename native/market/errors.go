package market

import "errors"

var (
	errNilState     = errors.New("market engine: state not configured")
	errNilToken     = errors.New("market engine: token backend not configured")
	errNilAuthority = errors.New("market engine: authority not configured")

	// ErrOrderNotFound is returned when the supplied order key has no live
	// entry.
	ErrOrderNotFound = errors.New("market: order not found")
	// ErrNoDeposit is returned when a deposit call observes no new tokens at
	// the engine's custody address since the last balance observation.
	ErrNoDeposit = errors.New("market: no deposit received")
	// ErrAmountMismatch is returned when the caller-declared deposit amount
	// disagrees with the observed balance delta.
	ErrAmountMismatch = errors.New("market: declared amount does not match received amount")
	// ErrAssetNotAllowed is returned when the deposit asset is not on the
	// accepted-asset allow list.
	ErrAssetNotAllowed = errors.New("market: asset not allowed")
	// ErrOrderClosing rejects new claims once the order is scheduled to close.
	ErrOrderClosing = errors.New("market: order scheduled to close")
	// ErrClaimTooLarge rejects claims above the order's per-claim ceiling.
	ErrClaimTooLarge = errors.New("market: claim exceeds per-claim ceiling")
	// ErrFeeExceedsAmount rejects claims whose fee ceiling is not strictly
	// below the claim amount.
	ErrFeeExceedsAmount = errors.New("market: max fee must be below claim amount")
	// ErrInsufficientCapacity is returned when a reservation would push the
	// reserved value past the escrowed amount, or when the capacity
	// arithmetic would overflow its representable range.
	ErrInsufficientCapacity = errors.New("market: insufficient unreserved capacity")
	// ErrClaimExpiredOrMissing is returned when the claim slot is tombstoned,
	// out of bounds, or past its reservation window.
	ErrClaimExpiredOrMissing = errors.New("market: claim expired or missing")
	// ErrProofKeyMismatch is returned when the payment proof verifies against
	// a different order key, preventing cross-order replay.
	ErrProofKeyMismatch = errors.New("market: proof bound to a different order")
	// ErrFeeTooHigh is returned when the quoted facilitator fee exceeds the
	// claim's fee ceiling.
	ErrFeeTooHigh = errors.New("market: facilitator fee exceeds claim ceiling")
	// ErrVerifierUnknown is returned when the order references a verification
	// gateway that has not been registered with the engine.
	ErrVerifierUnknown = errors.New("market: verifier not registered")
	// ErrUnauthorized is returned when the caller lacks the role required by
	// the operation.
	ErrUnauthorized = errors.New("market: unauthorized caller")
	// ErrReentrantCall is returned when a mutating operation is entered while
	// another one is already in flight on the same engine.
	ErrReentrantCall = errors.New("market: reentrant call rejected")
	// ErrOrderNotCloseable is returned when neither the schedule delay has
	// elapsed nor all claims are inactive.
	ErrOrderNotCloseable = errors.New("market: order has active claims")
	// ErrAmountOverflow is returned when token-amount arithmetic would exceed
	// the representable range. The operation fails closed.
	ErrAmountOverflow = errors.New("market: amount arithmetic overflow")
	// ErrWithdrawTooLarge is returned when the requested withdrawal exceeds
	// the order's unreserved balance.
	ErrWithdrawTooLarge = errors.New("market: withdrawal exceeds unreserved balance")
	// ErrWithdrawNegative rejects withdrawal requests with a negative amount
	// before any state is touched.
	ErrWithdrawNegative = errors.New("market: withdrawal amount must not be negative")
)
