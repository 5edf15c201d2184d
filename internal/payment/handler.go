package payment

import (
	"errors"
	"net/http"

	"storefront-be/internal/order"
	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	"github.com/gorilla/mux"
)

const fallbackCode = "PAYMENT_ERROR"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Pay redirects the caller to the gateway's hosted invoice page.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	caller := session.FromContext(r.Context())
	if caller == nil {
		transport.WriteError(w, r, transport.NewError(http.StatusUnauthorized, transport.CodeUnauthorized, "login required"), fallbackCode)
		return
	}

	invoiceURL, err := h.svc.CreatePaymentRedirect(r.Context(), caller, mux.Vars(r)["order_id"])
	if err != nil {
		transport.WriteError(w, r, httpError(err), fallbackCode)
		return
	}
	http.Redirect(w, r, invoiceURL, http.StatusFound)
}

func httpError(err error) error {
	var gwErr *GatewayError
	switch {
	case errors.As(err, &gwErr):
		return transport.NewError(http.StatusInternalServerError, "XENDIT_ERROR", gwErr.Body).Wrap(err)
	case errors.Is(err, ErrNotConfigured):
		return transport.NewError(http.StatusInternalServerError, "CONFIG_ERROR", "Xendit configuration not found")
	case errors.Is(err, ErrGatewayUnavailable):
		return transport.NewError(http.StatusServiceUnavailable, transport.CodeUnavailable, "payment gateway unavailable, retry later").Wrap(err)
	case errors.Is(err, ErrOrderNotPayable):
		return transport.NewError(http.StatusConflict, "ORDER_NOT_PAYABLE", "Order is not awaiting payment")
	}
	return order.HTTPError(err)
}
