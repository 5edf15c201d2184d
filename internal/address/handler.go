package address

import (
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
)

const fallbackCode = "ADDRESS_ERROR"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.svc.List(r.Context(), session.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, addrs)
}

// Default answers with data null when no default is set.
func (h *Handler) Default(w http.ResponseWriter, r *http.Request) {
	addr, err := h.svc.Default(r.Context(), session.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, addr)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	var errs *multierror.Error
	required := []struct {
		field string
		value *string
	}{
		{"recipient_name", in.RecipientName},
		{"street", in.Street},
		{"city", in.City},
	}
	for _, f := range required {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			errs = multierror.Append(errs, errors.New(f.field+" is required"))
		}
	}
	if err := transport.FieldErrors(errs); err != nil {
		h.fail(w, r, err)
		return
	}

	addr, err := h.svc.Create(r.Context(), session.UserID(r.Context()), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusCreated, addr)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}

	addr, err := h.svc.Update(r.Context(), session.UserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, addr)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.Delete(r.Context(), session.UserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrAddressNotFound):
		err = transport.NotFound("address not found")
	case errors.Is(err, ErrNothingToUpdate):
		err = transport.Validation(ErrNothingToUpdate.Error())
	}
	transport.WriteError(w, r, err, fallbackCode)
}
