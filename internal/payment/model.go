package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// Gateway invoice statuses.
const (
	InvoicePending = "PENDING"
	InvoicePaid    = "PAID"
	InvoiceSettled = "SETTLED"
	InvoiceExpired = "EXPIRED"
	InvoiceFailed  = "FAILED"
)

type InvoiceRequest struct {
	ExternalID         string          `json:"external_id"`
	Amount             decimal.Decimal `json:"amount"`
	PayerEmail         string          `json:"payer_email,omitempty"`
	Description        string          `json:"description"`
	SuccessRedirectURL string          `json:"success_redirect_url"`
	FailureRedirectURL string          `json:"failure_redirect_url"`
}

type Invoice struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	InvoiceURL string          `json:"invoice_url"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

// Payment is the local record of an invoice issued for an order.
type Payment struct {
	InvoiceID  string          `json:"invoice_id"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	InvoiceURL string          `json:"invoice_url"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
}

// Usable reports whether the invoice can still be paid for amount.
func (p *Payment) Usable(amount decimal.Decimal, now time.Time) bool {
	return p.Status == InvoicePending &&
		p.InvoiceURL != "" &&
		p.Amount.Equal(amount) &&
		p.ExpiresAt != nil && now.Before(*p.ExpiresAt)
}

// Callback is one delivery of the gateway's invoice callback.
type Callback struct {
	InvoiceID  string           `json:"invoice_id"`
	ExternalID string           `json:"external_id"`
	Status     string           `json:"status"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	PaidAt     *time.Time       `json:"paid_at,omitempty"`
	Outcome    string           `json:"outcome,omitempty"`
}
