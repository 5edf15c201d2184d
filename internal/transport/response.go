package transport

import (
	"encoding/json"
	"net/http"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes data as a successful envelope.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	WriteBody(w, r, status, Envelope{Success: true, Data: data})
}

// WriteBody writes body as JSON without the envelope. Only callers with a
// fixed external contract, such as gateway callbacks, should use it.
func WriteBody(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromCtx(r.Context()).Warn("failed to encode response", zap.Error(err))
	}
}
