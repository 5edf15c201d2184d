package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one row of the cart table.
type Line struct {
	CartID    int64      `json:"cart_id"`
	UserID    string     `json:"user_id"`
	ProductID string     `json:"product_id"`
	Quantity  int        `json:"quantity"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Item is a cart line merged with the product it points at.
type Item struct {
	Line
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Brand  string          `json:"brand"`
	Images []string        `json:"images"`
}

type AddInput struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type UpdateInput struct {
	Quantity *int `json:"quantity"`
}
