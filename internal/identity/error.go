package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnavailable = errors.New("identity provider unavailable")
	ErrUnknownKey  = errors.New("signing key not found")
)

// APIError is a non-2xx answer from the identity provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider %d: %s", e.Status, e.Message)
}

// The provider has used several error shapes over time.
func parseAPIError(status int, raw []byte) *APIError {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	e := &APIError{Status: status, Code: firstNonEmpty(body.ErrorCode, body.Error)}
	e.Message = firstNonEmpty(body.ErrorDescription, body.Msg, body.Message, body.Error, strings.TrimSpace(string(raw)))
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Reasons a bearer token is rejected.
const (
	ReasonMalformed     = "malformed"
	ReasonExpired       = "expired"
	ReasonBadSignature  = "bad_signature"
	ReasonWrongIssuer   = "wrong_issuer"
	ReasonWrongAudience = "wrong_audience"
	ReasonMissingClaim  = "missing_claim"
	ReasonInvalid       = "invalid"
)

type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return "invalid token (" + e.Reason + "): " + e.Err.Error()
	}
	return "invalid token (" + e.Reason + ")"
}

func (e *TokenError) Unwrap() error { return e.Err }
