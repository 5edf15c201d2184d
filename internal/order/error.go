package order

import "errors"

var (
	// -- Checkout preconditions --
	ErrAddressRequired       = errors.New("shipping address required")
	ErrInvalidAddress        = errors.New("invalid shipping address")
	ErrEmptyCart             = errors.New("no items in cart")
	ErrProductUnavailable    = errors.New("product no longer available")
	ErrInvalidIdempotencyKey = errors.New("idempotency key must be a uuid")

	// -- Orders --
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderForbidden = errors.New("order belongs to another user")
	ErrInvalidStatus  = errors.New("status must be one of: paid, delivered")
)
