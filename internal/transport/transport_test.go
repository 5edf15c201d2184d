package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-be/internal/postgrest"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)

	WriteJSON(w, r, http.StatusCreated, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"status": "ok"}, body["data"])
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
}

func TestWriteBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/webhook", nil)

	WriteBody(w, r, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"Unauthorized"}`, w.Body.String())
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"Typed error", Validation("quantity must be > 0"), http.StatusUnprocessableEntity, CodeValidation},
		{"Wrapped typed error", fmt.Errorf("cart: %w", NotFound("cart item not found")), http.StatusNotFound, CodeNotFound},
		{"Store unavailable", fmt.Errorf("%w: dial tcp", postgrest.ErrUnavailable), http.StatusServiceUnavailable, CodeUnavailable},
		{"Store no rows", &postgrest.Error{Status: 406, Code: "PGRST116"}, http.StatusNotFound, CodeNotFound},
		{"Store rejects token", &postgrest.Error{Status: 401, Message: "JWT expired"}, http.StatusUnauthorized, CodeUnauthorized},
		{"Row level security", &postgrest.Error{Status: 403, Code: "42501"}, http.StatusForbidden, CodeForbidden},
		{"Unexpected", errors.New("boom"), http.StatusInternalServerError, "CART_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)

			WriteError(w, r, tt.err, "CART_ERROR")

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeEnvelope(t, w)
			assert.Equal(t, false, body["success"])
			assert.Nil(t, body["data"])
			errBody := body["error"].(map[string]any)
			assert.Equal(t, tt.wantCode, errBody["code"])
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type input struct {
		ProductID string `json:"product_id"`
	}

	t.Run("Valid", func(t *testing.T) {
		var in input
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"p1"}`))
		require.NoError(t, DecodeJSON(r, &in))
		assert.Equal(t, "p1", in.ProductID)
	})

	t.Run("Empty body", func(t *testing.T) {
		var in input
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		require.NoError(t, DecodeJSON(r, &in))
		assert.Empty(t, in.ProductID)
	})

	t.Run("Malformed", func(t *testing.T) {
		var in input
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":`))

		err := DecodeJSON(r, &in)

		var e *Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
	})
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 3, ParseInt("3", 1, 1, 100))
	assert.Equal(t, 1, ParseInt("", 1, 1, 100))
	assert.Equal(t, 1, ParseInt("abc", 1, 1, 100))
	assert.Equal(t, 1, ParseInt("0", 1, 1, 100))
	assert.Equal(t, 20, ParseInt("101", 20, 1, 100))
}

func TestParseFloat(t *testing.T) {
	got := ParseFloat("12.5")
	require.NotNil(t, got)
	assert.Equal(t, 12.5, *got)

	assert.Nil(t, ParseFloat(""))
	assert.Nil(t, ParseFloat("cheap"))
	assert.Nil(t, ParseFloat("NaN"))
}

func TestFieldErrors(t *testing.T) {
	var errs *multierror.Error
	assert.NoError(t, FieldErrors(errs))

	errs = multierror.Append(errs, errors.New("recipient_name is required"), errors.New("city is required"))
	err := FieldErrors(errs)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status)
	assert.Equal(t, "recipient_name is required; city is required", e.Message)
}
