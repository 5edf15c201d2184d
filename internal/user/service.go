package user

import (
	"context"
	"errors"
	"net/http"

	"storefront-be/internal/identity"
	"storefront-be/internal/logger"
	"storefront-be/internal/session"

	"go.uber.org/zap"
)

// Provider is the subset of the identity provider the auth flows use.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*identity.User, *identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*identity.Claims, error)
}

type Service interface {
	// Register creates the account. The identity is nil when the provider
	// requires email confirmation before the first login.
	Register(ctx context.Context, email, password string) (*Profile, *session.Identity, error)
	Login(ctx context.Context, email, password string) (*session.Identity, error)
	Logout(ctx context.Context, caller *session.Identity)
	ResetPassword(ctx context.Context, email, redirectTo string) error
	AdoptToken(ctx context.Context, raw string) (*session.Identity, error)
}

type service struct {
	provider Provider
	verifier TokenVerifier
}

func NewService(provider Provider, verifier TokenVerifier) Service {
	return &service{provider: provider, verifier: verifier}
}

func (s *service) Register(ctx context.Context, email, password string) (*Profile, *session.Identity, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "Register"),
	)

	u, sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == "user_already_exists" || apiErr.Code == "email_exists") {
			return nil, nil, ErrEmailExists
		}
		log.Warn("sign up failed", zap.Error(err))
		return nil, nil, err
	}

	profile := &Profile{ID: u.ID, Email: u.Email, Role: roleOf(u)}
	log.Info("account registered", zap.String("user_id", u.ID), zap.Bool("confirmed", sess != nil))

	if sess == nil {
		return profile, nil, nil
	}
	return profile, identityFromSession(sess), nil
}

func (s *service) Login(ctx context.Context, email, password string) (*session.Identity, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "Login"),
	)

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			log.Info("credentials rejected", zap.Int("status", apiErr.Status))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	id := identityFromSession(sess)
	log.Info("login succeeded", zap.String("user_id", id.UserID))
	return id, nil
}

// Logout revokes the provider session, best effort.
func (s *service) Logout(ctx context.Context, caller *session.Identity) {
	if caller == nil || caller.AccessToken == "" {
		return
	}
	if err := s.provider.SignOut(ctx, caller.AccessToken); err != nil {
		logger.FromCtx(ctx).Warn("provider sign out failed",
			zap.String("user_id", caller.UserID),
			zap.Error(err),
		)
	}
}

func (s *service) ResetPassword(ctx context.Context, email, redirectTo string) error {
	return s.provider.ResetPasswordForEmail(ctx, email, redirectTo)
}

// AdoptToken verifies a provider token obtained by the browser and turns
// it into a session identity.
func (s *service) AdoptToken(ctx context.Context, raw string) (*session.Identity, error) {
	claims, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &session.Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		Role:        sessionRole(claims.AppRole()),
		AccessToken: raw,
	}, nil
}

func identityFromSession(sess *identity.Session) *session.Identity {
	return &session.Identity{
		UserID:      sess.User.ID,
		Email:       sess.User.Email,
		Role:        roleOf(sess.User),
		AccessToken: sess.AccessToken,
	}
}

func roleOf(u *identity.User) string {
	return sessionRole(u.Role())
}

func sessionRole(role string) string {
	if role == identity.RoleAdmin {
		return session.RoleAdmin
	}
	return session.RoleAuthenticated
}
