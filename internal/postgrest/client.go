package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Client talks to the REST data API of the managed store. One Client is
// built per credential path at startup and shared by every repository.
type Client struct {
	baseURL     string
	apiKey      string
	serviceRole bool
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithServiceRole makes every request authenticate with the api key itself,
// ignoring any user token in the context. Row-level security is bypassed.
func WithServiceRole() Option {
	return func(c *Client) { c.serviceRole = true }
}

func New(restURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(restURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	return newQuery(c, table)
}

type tokenKey struct{}

// WithToken attaches the caller's access token; requests made with ctx run
// under that user's row-level permissions.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func (c *Client) bearer(ctx context.Context) string {
	if c.serviceRole {
		return c.apiKey
	}
	if token := TokenFromContext(ctx); token != "" {
		return token
	}
	return c.apiKey
}

type request struct {
	method string
	table  string
	query  string
	body   any
	prefer []string
	single bool
}

func (c *Client) do(ctx context.Context, req request, dest any) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "postgrest"),
		zap.String("method", req.method),
		zap.String("table", req.table),
	)

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", req.table, err)
		}
		body = bytes.NewReader(raw)
	}

	url := c.baseURL + "/" + req.table
	if req.query != "" {
		url += "?" + req.query
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", req.table, err)
	}

	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.bearer(ctx))
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.single {
		httpReq.Header.Set("Accept", "application/vnd.pgrst.object+json")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if len(req.prefer) > 0 {
		httpReq.Header.Set("Prefer", strings.Join(req.prefer, ","))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("data api request failed", zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.method, req.table, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", ErrUnavailable, req.table, err)
	}

	log.Debug("data api response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if dest == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", req.table, err)
	}
	return nil
}

// IsNotFound reports whether err means the addressed row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
