package middleware

import (
	"net/http"

	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"
	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	"go.uber.org/zap"
)

// SessionReader resolves the caller from the request cookie.
type SessionReader interface {
	Read(r *http.Request) (*session.Identity, error)
}

// Session attaches the cookie identity and its data-store token to the
// request context. Requests without a usable cookie continue anonymously.
func Session(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.Read(r)
			if err != nil {
				if _, cerr := r.Cookie(session.CookieName); cerr == nil {
					logger.FromCtx(r.Context()).Debug("ignoring session cookie", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}

			recordCaller(r.Context(), id.UserID)

			ctx := session.NewContext(r.Context(), id)
			if id.AccessToken != "" {
				ctx = postgrest.WithToken(ctx, id.AccessToken)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous callers with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session.FromContext(r.Context()) == nil {
			transport.WriteError(w, r, transport.NewError(http.StatusUnauthorized, transport.CodeUnauthorized, "login required"), "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.FromContext(r.Context())
		if id == nil {
			transport.WriteError(w, r, transport.NewError(http.StatusUnauthorized, transport.CodeUnauthorized, "login required"), "")
			return
		}
		if !id.IsAdmin() {
			logger.FromCtx(r.Context()).Warn("admin route denied",
				zap.String("user_id", id.UserID),
				zap.String("path", r.URL.Path),
			)
			transport.WriteError(w, r, transport.NewError(http.StatusForbidden, transport.CodeForbidden, "admin only"), "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
