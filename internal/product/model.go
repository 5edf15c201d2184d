package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Discount    float64         `json:"discount"`
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"review_count"`
	SoldCount   int             `json:"sold_count"`
	Images      []string        `json:"images"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
}

// Input is an admin write. Only the fields present are written, so a PUT
// can patch a single column.
type Input struct {
	ID          string           `json:"id"`
	Name        *string          `json:"name,omitempty"`
	Brand       *string          `json:"brand,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Discount    *float64         `json:"discount,omitempty"`
	Rating      *float64         `json:"rating,omitempty"`
	ReviewCount *int             `json:"review_count,omitempty"`
	SoldCount   *int             `json:"sold_count,omitempty"`
	Images      []string         `json:"images,omitempty"`
}

const (
	SortBestseller = "bestseller"
	SortSoldDesc   = "sold_desc"
	SortRatingDesc = "rating_desc"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortCreated    = "created_desc"

	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// ListOptions filters and pages the catalog. Nil numeric filters are unset.
type ListOptions struct {
	Search    string
	Brand     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
	Sort      string
	Page      int
	Limit     int
}

// Window is the inclusive row range of the requested page.
func (o ListOptions) Window() (from, to int) {
	from = (o.Page - 1) * o.Limit
	return from, from + o.Limit - 1
}

// SortColumn maps a sort key to its column and direction.
func SortColumn(sort string) (column string, desc bool) {
	switch sort {
	case SortBestseller, SortSoldDesc:
		return "sold_count", true
	case SortRatingDesc:
		return "rating", true
	case SortPriceAsc:
		return "price", false
	case SortPriceDesc:
		return "price", true
	default:
		return "created_at", true
	}
}
