package cart

import (
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
)

const fallbackCode = "CART_ERROR"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), session.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, items)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var in AddInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.ProductID = strings.TrimSpace(in.ProductID)

	var errs *multierror.Error
	if in.ProductID == "" {
		errs = multierror.Append(errs, errors.New("product_id is required"))
	}
	if in.Quantity == nil || *in.Quantity <= 0 {
		errs = multierror.Append(errs, ErrInvalidQuantity)
	}
	if err := transport.FieldErrors(errs); err != nil {
		h.fail(w, r, err)
		return
	}

	line, err := h.svc.Add(r.Context(), session.UserID(r.Context()), in.ProductID, *in.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusCreated, line)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if in.Quantity == nil {
		h.fail(w, r, ErrInvalidQuantity)
		return
	}

	line, err := h.svc.Update(r.Context(), session.UserID(r.Context()), mux.Vars(r)["product_id"], *in.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, line)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["product_id"]
	if err := h.svc.Remove(r.Context(), session.UserID(r.Context()), productID); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, map[string]string{"product_id": productID})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		err = transport.Validation(ErrInvalidQuantity.Error())
	case errors.Is(err, ErrProductNotFound):
		err = transport.NotFound("product not found")
	case errors.Is(err, ErrCartItemNotFound):
		err = transport.NotFound("cart item not found")
	}
	transport.WriteError(w, r, err, fallbackCode)
}
