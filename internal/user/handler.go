package user

import (
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/identity"
	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	"github.com/hashicorp/go-multierror"
)

const fallbackCode = "AUTH_ERROR"

type SessionWriter interface {
	Issue(w http.ResponseWriter, id session.Identity) error
	Clear(w http.ResponseWriter)
}

type Handler struct {
	svc      Service
	sessions SessionWriter
}

func NewHandler(svc Service, sessions SessionWriter) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in Credentials
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateCredentials(in); err != nil {
		h.fail(w, r, err)
		return
	}

	profile, id, err := h.svc.Register(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if id != nil {
		if err := h.sessions.Issue(w, *id); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	transport.WriteJSON(w, r, http.StatusCreated, map[string]any{"user": profile})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in Credentials
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := validateCredentials(in); err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := h.svc.Login(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.establish(w, r, id)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), session.FromContext(r.Context()))
	h.sessions.Clear(w)
	transport.WriteJSON(w, r, http.StatusOK, nil)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if strings.TrimSpace(in.Email) == "" {
		h.fail(w, r, transport.Validation("email is required"))
		return
	}

	if err := h.svc.ResetPassword(r.Context(), strings.TrimSpace(in.Email), in.RedirectTo); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, nil)
}

// Session adopts a provider access token, from the body or the
// Authorization header, as the caller's session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	var in TokenInput
	if err := transport.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	token := in.AccessToken
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if strings.TrimSpace(token) == "" {
		h.fail(w, r, transport.Validation("access_token is required"))
		return
	}

	id, err := h.svc.AdoptToken(r.Context(), token)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.establish(w, r, id)
}

// Me answers with data null for anonymous callers.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller := session.FromContext(r.Context())
	if caller == nil {
		transport.WriteJSON(w, r, http.StatusOK, nil)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, profileOf(caller))
}

func (h *Handler) establish(w http.ResponseWriter, r *http.Request, id *session.Identity) {
	if err := h.sessions.Issue(w, *id); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, r, http.StatusOK, map[string]any{"user": profileOf(id)})
}

func profileOf(id *session.Identity) *Profile {
	return &Profile{ID: id.UserID, Email: id.Email, Role: id.Role}
}

func validateCredentials(in Credentials) error {
	var errs *multierror.Error
	if strings.TrimSpace(in.Email) == "" {
		errs = multierror.Append(errs, errors.New("email is required"))
	}
	if in.Password == "" {
		errs = multierror.Append(errs, errors.New("password is required"))
	}
	return transport.FieldErrors(errs)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	transport.WriteError(w, r, httpError(err), fallbackCode)
}

func httpError(err error) error {
	var tokenErr *identity.TokenError
	var apiErr *identity.APIError
	switch {
	case errors.As(err, &tokenErr):
		return transport.NewError(http.StatusUnauthorized, "INVALID_TOKEN", tokenErr.Reason).Wrap(err)
	case errors.Is(err, ErrInvalidCredentials):
		return transport.NewError(http.StatusUnauthorized, "AUTH_FAILED", "Invalid email or password")
	case errors.Is(err, ErrEmailExists):
		return transport.NewError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered")
	case errors.Is(err, identity.ErrUnavailable):
		return transport.NewError(http.StatusServiceUnavailable, transport.CodeUnavailable, "identity provider unavailable, retry later").Wrap(err)
	case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
		return transport.NewError(http.StatusBadRequest, fallbackCode, apiErr.Message).Wrap(err)
	}
	return err
}
