package identity

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeyTTL     = 10 * time.Minute
	minRefreshSpacing = 30 * time.Second
)

// KeySet caches the provider's published signing keys. An unknown key id
// triggers one shared refresh, rate limited so forged kids cannot turn
// every request into a fetch.
type KeySet struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	keys    map[string]any
	fetched time.Time

	group singleflight.Group
}

func NewKeySet(url string, timeout time.Duration) *KeySet {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KeySet{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		ttl:        defaultKeyTTL,
		now:        time.Now,
		keys:       map[string]any{},
	}
}

func (k *KeySet) Key(ctx context.Context, kid string) (any, error) {
	k.mu.RLock()
	key, ok := k.keys[kid]
	fresh := k.now().Sub(k.fetched) < k.ttl
	recent := k.now().Sub(k.fetched) < minRefreshSpacing
	k.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}
	if !ok && recent {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}

	_, err, _ := k.group.Do("refresh", func() (any, error) {
		return nil, k.refresh(ctx)
	})
	if err != nil {
		// Serve the stale key while the provider is unreachable.
		if ok {
			logger.FromCtx(ctx).Warn("jwks refresh failed, using cached key", zap.Error(err))
			return key, nil
		}
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if key, ok := k.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

func (k *KeySet) refresh(ctx context.Context) error {
	log := logger.FromCtx(ctx).With(zap.String("layer", "identity"), zap.String("method", "RefreshJWKS"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: fetch jwks: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: jwks returned %d", ErrUnavailable, resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, j := range doc.Keys {
		if j.Use != "" && j.Use != "sig" {
			continue
		}
		pub, err := j.publicKey()
		if err != nil {
			log.Warn("skipping unusable jwk", zap.String("kid", j.Kid), zap.Error(err))
			continue
		}
		keys[j.Kid] = pub
	}

	k.mu.Lock()
	k.keys = keys
	k.fetched = k.now()
	k.mu.Unlock()

	log.Info("jwks refreshed", zap.Int("keys", len(keys)))
	return nil
}

func (j jwk) publicKey() (any, error) {
	switch j.Kty {
	case "RSA":
		n, err := decodeBigInt(j.N)
		if err != nil {
			return nil, fmt.Errorf("modulus: %w", err)
		}
		e, err := decodeBigInt(j.E)
		if err != nil {
			return nil, fmt.Errorf("exponent: %w", err)
		}
		if !e.IsInt64() || e.Int64() < 3 {
			return nil, fmt.Errorf("exponent out of range")
		}
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil

	case "EC":
		var curve elliptic.Curve
		switch j.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("unsupported curve %q", j.Crv)
		}
		x, err := decodeBigInt(j.X)
		if err != nil {
			return nil, fmt.Errorf("x: %w", err)
		}
		y, err := decodeBigInt(j.Y)
		if err != nil {
			return nil, fmt.Errorf("y: %w", err)
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil

	default:
		return nil, fmt.Errorf("unsupported key type %q", j.Kty)
	}
}

func decodeBigInt(s string) (*big.Int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}
