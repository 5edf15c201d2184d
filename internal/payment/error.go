package payment

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured      = errors.New("payment gateway is not configured")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrNoPayerEmail       = errors.New("payer email could not be resolved")
)

// GatewayError is a non-2xx answer from the gateway. Body is kept verbatim.
type GatewayError struct {
	Status int
	Body   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("xendit error %d: %s", e.Status, e.Body)
}
