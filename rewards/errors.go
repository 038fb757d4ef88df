package rewards

import "errors"

// Core operations return explicit sentinel errors instead of silently
// no-opping; user-facing wording belongs to the HTTP layer. Note that an
// insufficient points balance is deliberately not an error: SpendPoints
// clamps and reports the amount actually removed.
var (
	// ErrValidation covers missing or malformed inputs (empty user id,
	// empty order id, card index out of range).
	ErrValidation = errors.New("invalid input")

	// ErrNotFound is returned when a coupon id does not exist in the
	// user's ledger.
	ErrNotFound = errors.New("coupon not found")

	// ErrAlreadyUsed is returned when redeeming a coupon twice.
	ErrAlreadyUsed = errors.New("coupon already used")

	// ErrAlreadyWon blocks any lottery entry for a user whose win flag is
	// set. The flag is permanent; this error never clears.
	ErrAlreadyWon = errors.New("already won")

	// ErrTokenMissing and ErrTokenExpired reject lottery entry without a
	// (valid) recent-purchase token.
	ErrTokenMissing = errors.New("purchase required")
	ErrTokenExpired = errors.New("purchase token expired")

	// ErrDuplicateOrder rejects a second coupon issuance for an order id
	// that already produced coupons.
	ErrDuplicateOrder = errors.New("coupons already issued for order")
)
