package middleware

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"storefront-be/internal/logger"
	"storefront-be/internal/session"
	"storefront-be/internal/transport"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Auth (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Frontend-heavy apps
	limitFrontend = rate.Limit(20)
	burstFrontend = 40

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

const defaultMaxBuckets = 10000

// webhookPath is authenticated by its callback token and never throttled;
// the gateway retries every rejected delivery.
const webhookPath = "/api/webhook"

// RateLimiter keeps one token bucket per caller and tier. Buckets live in
// a bounded LRU, so idle callers are evicted as new ones arrive.
type RateLimiter struct {
	internalKey string
	buckets     *lru.Cache[string, *rate.Limiter]
}

func NewRateLimiter(internalKey string, maxBuckets int) (*RateLimiter, error) {
	if maxBuckets <= 0 {
		maxBuckets = defaultMaxBuckets
	}
	cache, err := lru.New[string, *rate.Limiter](maxBuckets)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{internalKey: internalKey, buckets: cache}, nil
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || r.URL.Path == webhookPath {
			next.ServeHTTP(w, r)
			return
		}

		limit, burst, tier := rl.resolveTier(r)
		key := callerKey(r) + ":" + tier

		if !rl.limiter(key, limit, burst).Allow() {
			logger.FromCtx(r.Context()).Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", "1")
			transport.WriteError(w, r, transport.NewError(http.StatusTooManyRequests, "RATE_LIMITED", "too many requests"), "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	if l, ok := rl.buckets.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(limit, burst)
	// Another request may have raced us to create the bucket.
	if existing, ok, _ := rl.buckets.PeekOrAdd(key, l); ok {
		return existing
	}
	return l
}

// resolveTier determines which rate limit policy applies to the request.
func (rl *RateLimiter) resolveTier(r *http.Request) (rate.Limit, int, string) {
	if rl.internalKey != "" {
		got := r.Header.Get("X-Service-Auth")
		if subtle.ConstantTimeCompare([]byte(got), []byte(rl.internalKey)) == 1 {
			return limitInternal, burstInternal, "internal"
		}
	}

	if strings.HasPrefix(r.URL.Path, "/api/auth/") {
		return limitStrict, burstStrict, "strict"
	}

	if r.Header.Get("X-Client-Type") == "frontend-heavy" {
		return limitFrontend, burstFrontend, "frontend"
	}

	return limitGeneral, burstGeneral, "general"
}

// callerKey prefers the session user, then the client address.
func callerKey(r *http.Request) string {
	if id := session.FromContext(r.Context()); id != nil {
		return "user:" + id.UserID
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
