package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

// Client calls the hosted identity provider's REST API.
type Client struct {
	authURL    string
	anonKey    string
	httpClient *http.Client
}

func NewClient(authURL, anonKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		authURL:    strings.TrimRight(authURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SignUp registers a new account. When the provider requires email
// confirmation the returned session is nil.
func (c *Client) SignUp(ctx context.Context, email, password string) (*User, *Session, error) {
	var resp struct {
		Session
		User
	}
	err := c.call(ctx, http.MethodPost, "/signup", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, nil, err
	}

	// Auto-confirmed projects answer with a session; the rest with a bare user.
	if resp.Session.AccessToken != "" && resp.Session.User != nil {
		return resp.Session.User, &resp.Session, nil
	}
	return &resp.User, nil, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	err := c.call(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &s)
	if err != nil {
		return nil, err
	}
	if s.AccessToken == "" || s.User == nil {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "no session returned"}
	}
	return &s, nil
}

// SignOut revokes the refresh tokens behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.call(ctx, http.MethodPost, "/logout", accessToken, nil, nil)
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	return c.call(ctx, http.MethodPost, path, "", map[string]string{"email": email}, nil)
}

// GetUser resolves the account behind accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/user", accessToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) call(ctx context.Context, method, path, bearer string, body, dest any) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "identity"),
		zap.String("path", strings.SplitN(path, "?", 2)[0]),
	)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode identity request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.authURL+path, reader)
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}

	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("identity provider unreachable", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(resp.StatusCode, raw)
		log.Debug("identity provider rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}
