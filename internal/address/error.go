package address

import "errors"

var (
	ErrAddressNotFound = errors.New("address not found")
	ErrNothingToUpdate = errors.New("no fields to update")
)
