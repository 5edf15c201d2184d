package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusPaid:      1,
	StatusDelivered: 2,
}

// Rank orders statuses along the lifecycle; unknown statuses rank -1.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

type Order struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Status      Status          `json:"status"`
	AddressID   *string         `json:"address_id"`
	CheckoutKey *string         `json:"checkout_key,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	Plan        []PlannedLine   `json:"checkout_lines,omitempty"`
	Items       []Item          `json:"items,omitempty"`
}

// Item is one purchased line. Price is the unit price when the order was
// placed and never follows later catalog changes.
type Item struct {
	ID        int64           `json:"id,omitempty"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *ProductSummary `json:"product,omitempty"`
}

type ProductSummary struct {
	Name     string   `json:"name"`
	Brand    string   `json:"brand"`
	Category string   `json:"category"`
	Images   []string `json:"images"`
}

// NewOrder is the insert body of an order row.
type NewOrder struct {
	UserID      string          `json:"user_id"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Status      Status          `json:"status"`
	AddressID   string          `json:"address_id"`
	CheckoutKey *string         `json:"checkout_key,omitempty"`
	Plan        []PlannedLine   `json:"checkout_lines,omitempty"`
}

// PlannedLine is a line the checkout resolved when the order row was
// created. A resumed checkout inserts exactly these and nothing else.
type PlannedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CheckoutInput struct {
	UserID         string
	ProductIDs     []string
	AddressID      string
	IdempotencyKey string
}

type CheckoutResult struct {
	Order *Order          `json:"order"`
	Total decimal.Decimal `json:"total"`
}

// Outcome reports what a payment callback did to an order.
type Outcome string

const (
	OutcomeUpdated        Outcome = "updated"
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
)
