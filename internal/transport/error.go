package transport

import (
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeUnavailable  = "UPSTREAM_UNAVAILABLE"
)

// Error is an error that knows its HTTP status and public code.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func NewError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func Validation(message string) *Error {
	return NewError(http.StatusUnprocessableEntity, CodeValidation, message)
}

func NotFound(message string) *Error {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// Wrap keeps err as the cause of e, for logging.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WriteError writes err as a failed envelope. *Error values keep their own
// status; data API failures are classified; anything else becomes a 500
// carrying fallbackCode.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	e := classify(err, fallbackCode)

	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "transport"),
		zap.String("path", r.URL.Path),
		zap.Int("status", e.Status),
		zap.String("code", e.Code),
	)
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Error(err))
	}

	WriteBody(w, r, e.Status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: e.Code, Message: e.Message},
	})
}

func classify(err error, fallbackCode string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, postgrest.ErrUnavailable) {
		return NewError(http.StatusServiceUnavailable, CodeUnavailable, "data store unavailable, retry later")
	}
	if postgrest.IsNotFound(err) {
		return NotFound("resource not found")
	}

	var apiErr *postgrest.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return NewError(http.StatusUnauthorized, CodeUnauthorized, "session is not valid for the data store")
		case http.StatusForbidden:
			return NewError(http.StatusForbidden, CodeForbidden, "not allowed")
		}
	}

	return NewError(http.StatusInternalServerError, fallbackCode, err.Error())
}

// FieldErrors turns collected input problems into one 422, or nil when
// there are none.
func FieldErrors(errs *multierror.Error) error {
	if errs.ErrorOrNil() == nil {
		return nil
	}
	errs.ErrorFormat = func(list []error) string {
		msgs := make([]string, len(list))
		for i, err := range list {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, "; ")
	}
	return Validation(errs.Error())
}
