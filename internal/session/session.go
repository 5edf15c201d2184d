package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "session"

	RoleAuthenticated = "authenticated"
	RoleAdmin         = "admin"
)

var ErrNoSession = errors.New("no session")

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID      string
	Email       string
	Role        string
	AccessToken string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

type ctxKey struct{}

func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller, or nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// UserID returns the caller's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if id := FromContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}

type claims struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"at"`
	jwt.RegisteredClaims
}

// Manager issues and reads the signed session cookie.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

func (m *Manager) Issue(w http.ResponseWriter, id Identity) error {
	if id.UserID == "" {
		return errors.New("session: user id is required")
	}
	if id.Role == "" {
		id.Role = RoleAuthenticated
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:       id.Email,
		Role:        id.Role,
		AccessToken: id.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, m.cookie(signed, int(m.ttl.Seconds())))
	return nil
}

// Read returns the identity carried by the request cookie. Missing,
// tampered and expired cookies all yield ErrNoSession.
func (m *Manager) Read(r *http.Request) (*Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}

	var cl claims
	_, err = jwt.ParseWithClaims(c.Value, &cl, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if cl.Subject == "" {
		return nil, ErrNoSession
	}

	return &Identity{
		UserID:      cl.Subject,
		Email:       cl.Email,
		Role:        cl.Role,
		AccessToken: cl.AccessToken,
	}, nil
}

func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
