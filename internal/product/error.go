package product

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSearchRequired  = errors.New("search query is required")
)
