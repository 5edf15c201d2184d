package postgrest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("postgrest: row not found")
	ErrUnavailable = errors.New("postgrest: data api unavailable")
	ErrConflict    = errors.New("postgrest: unique violation")
)

// codeSingularity is returned when an object-mode request matched 0 or >1 rows.
const codeSingularity = "PGRST116"

const codeUniqueViolation = "23505"

// Error is a non-2xx response from the data API.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest %d: %s", e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == codeSingularity || e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Code == codeUniqueViolation
	case ErrUnavailable:
		return e.Status == http.StatusBadGateway ||
			e.Status == http.StatusServiceUnavailable ||
			e.Status == http.StatusGatewayTimeout
	}
	return false
}
