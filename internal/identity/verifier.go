package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the provider access-token claims this service relies on.
type Claims struct {
	Email       string         `json:"email"`
	Role        string         `json:"role"`
	AppMetadata map[string]any `json:"app_metadata"`
	jwt.RegisteredClaims
}

// AppRole prefers the role in app_metadata over the database role claim.
func (c *Claims) AppRole() string {
	if role, ok := c.AppMetadata["role"].(string); ok && role != "" {
		return role
	}
	if c.Role == RoleAdmin {
		return RoleAdmin
	}
	return "authenticated"
}

// KeySource resolves asymmetric verification keys by key id.
type KeySource interface {
	Key(ctx context.Context, kid string) (any, error)
}

// Verifier checks provider-issued bearer tokens. Symmetric tokens are
// checked against the shared secret, asymmetric ones against keys.
type Verifier struct {
	secret   []byte
	keys     KeySource
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

type VerifierOption func(*Verifier)

func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.leeway = d }
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(secret string, keys KeySource, issuer, audience string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:   []byte(secret),
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		leeway:   30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims, v.keyFunc(ctx),
		jwt.WithValidMethods([]string{"HS256", "RS256", "ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, &TokenError{Reason: reason(err), Err: err}
	}

	if claims.IssuedAt == nil {
		return nil, &TokenError{Reason: ReasonMissingClaim, Err: errors.New("iat is required")}
	}
	if claims.Subject == "" {
		return nil, &TokenError{Reason: ReasonMissingClaim, Err: errors.New("sub is required")}
	}

	return claims, nil
}

func (v *Verifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			if len(v.secret) == 0 {
				return nil, errors.New("no shared secret configured")
			}
			return v.secret, nil
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			if v.keys == nil {
				return nil, errors.New("no key set configured")
			}
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("%w: token has no kid", ErrUnknownKey)
			}
			return v.keys.Key(ctx, kid)
		default:
			return nil, fmt.Errorf("unsupported signing method %v", t.Header["alg"])
		}
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonWrongIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonWrongAudience
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonMissingClaim
	default:
		return ReasonInvalid
	}
}
