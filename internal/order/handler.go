package order

import (
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	"github.com/gorilla/mux"
)

const (
	fallbackCode         = "ORDER_ERROR"
	checkoutFallbackCode = "CHECKOUT_ERROR"

	IdempotencyKeyHeader = "Idempotency-Key"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type checkoutRequest struct {
	ProductIDs []string `json:"product_ids"`
	AddressID  string   `json:"address_id"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var body checkoutRequest
	if err := transport.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err, checkoutFallbackCode)
		return
	}

	res, err := h.svc.Checkout(r.Context(), CheckoutInput{
		UserID:         session.UserID(r.Context()),
		ProductIDs:     body.ProductIDs,
		AddressID:      strings.TrimSpace(body.AddressID),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		h.fail(w, r, err, checkoutFallbackCode)
		return
	}
	transport.WriteJSON(w, r, http.StatusCreated, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context(), session.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err, fallbackCode)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, orders)
}

// Get hides other users' orders behind a plain 404.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder(r.Context(), session.UserID(r.Context()), mux.Vars(r)["id"])
	if errors.Is(err, ErrOrderForbidden) {
		err = ErrOrderNotFound
	}
	if err != nil {
		h.fail(w, r, err, fallbackCode)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, o)
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if err := transport.DecodeJSON(r, &body); err != nil {
		h.fail(w, r, err, fallbackCode)
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.svc.UpdateStatus(r.Context(), id, body.Status); err != nil {
		h.fail(w, r, err, fallbackCode)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, map[string]any{"order_id": id, "status": body.Status})
}

// HTTPError maps order errors to their HTTP form. Other packages that
// surface order errors reuse it.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrAddressRequired):
		return transport.NewError(http.StatusBadRequest, "ADDRESS_REQUIRED", "Shipping address required")
	case errors.Is(err, ErrInvalidAddress):
		return transport.NewError(http.StatusBadRequest, "INVALID_ADDRESS", "Invalid shipping address")
	case errors.Is(err, ErrEmptyCart):
		return transport.NewError(http.StatusBadRequest, "EMPTY_CART", "No items in cart")
	case errors.Is(err, ErrProductUnavailable):
		return transport.NewError(http.StatusConflict, "PRODUCT_UNAVAILABLE", err.Error())
	case errors.Is(err, ErrInvalidIdempotencyKey), errors.Is(err, ErrInvalidStatus):
		return transport.Validation(err.Error())
	case errors.Is(err, ErrOrderNotFound):
		return transport.NotFound("Order not found")
	case errors.Is(err, ErrOrderForbidden):
		return transport.NewError(http.StatusForbidden, transport.CodeForbidden, "Access denied")
	}
	return err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code string) {
	transport.WriteError(w, r, HTTPError(err), code)
}
