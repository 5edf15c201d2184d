package order

import (
	"fmt"

	"storefront-be/internal/cart"
	"storefront-be/internal/product"

	"github.com/shopspring/decimal"
)

// priceLines snapshots the current catalog price of every line. A line whose
// product is missing fails the whole set.
func priceLines(lines []cart.Line, products []product.Product) ([]Item, decimal.Decimal, error) {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrProductUnavailable, l.ProductID)
		}
		items = append(items, Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     p.Price,
		})
	}
	return items, sumItems(items), nil
}

func sumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func planOf(items []Item) []PlannedLine {
	plan := make([]PlannedLine, 0, len(items))
	for _, it := range items {
		plan = append(plan, PlannedLine{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return plan
}

func idsOf[T any](rows []T, id func(T) string) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, id(r))
	}
	return ids
}
