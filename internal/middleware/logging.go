package middleware

import (
	"context"
	"net/http"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// responseRecorder lets us capture HTTP status codes
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging writes one access log line per request. It runs outside Session,
// which reports the caller back through a holder in the context.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		holder := &callerHolder{}
		next.ServeHTTP(rec, r.WithContext(withCallerHolder(r.Context(), holder)))

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
		}
		if holder.userID != "" {
			fields = append(fields, zap.String("user_id", holder.userID))
		}

		logger.FromCtx(r.Context()).Info("http request", fields...)
	})
}

type callerCtxKey struct{}

// callerHolder carries the session user back out to the access log.
type callerHolder struct {
	userID string
}

func withCallerHolder(ctx context.Context, h *callerHolder) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, h)
}

func recordCaller(ctx context.Context, userID string) {
	if h, ok := ctx.Value(callerCtxKey{}).(*callerHolder); ok {
		h.userID = userID
	}
}
