package ledger

import "errors"

// Operation outcomes. Every failure is terminal for the operation that
// raised it; the enclosing storage transaction rolls back, so no partial
// mutation is retained.
var (
	// ErrAlreadyExists is returned when a derived address is already occupied.
	ErrAlreadyExists = errors.New("account already exists")

	// ErrAlreadyInitialized is returned when initialize is called twice.
	ErrAlreadyInitialized = errors.New("treasury already initialized")

	// ErrNotFound is returned when a referenced pool or giveaway is absent.
	ErrNotFound = errors.New("account not found")

	// ErrUnauthorized is returned when a signature recovers to the wrong
	// identity or a privileged call is made by a non-admin.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrExhausted is returned when a giveaway has no claim slots or
	// balance left.
	ErrExhausted = errors.New("giveaway exhausted")

	// ErrInsufficientBalance is returned when an account cannot cover the
	// requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidSignature is returned when a claim signature is malformed
	// or unrecoverable.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrArithmeticOverflow is returned when balance arithmetic would
	// overflow. The operation fails whole; balances never wrap or saturate.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrInvalidAmount is returned for zero amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidArgument is returned for malformed request parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClaimExpired is returned when a claim's signed timestamp is not
	// in the future of the ledger clock.
	ErrClaimExpired = errors.New("claim expired")

	// ErrDuplicateOrder is returned when an order ID was already booked
	// against the same pool.
	ErrDuplicateOrder = errors.New("duplicate order")
)
