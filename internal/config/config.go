package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppEnv        string `envconfig:"APP_ENV" default:"development"`
	AppPort       string `envconfig:"APP_PORT" default:"5000"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:5000"`

	SupabaseURL            string `envconfig:"SUPABASE_URL" required:"true"`
	SupabaseAnonKey        string `envconfig:"SUPABASE_ANON_KEY" required:"true"`
	SupabaseServiceRoleKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret      string `envconfig:"SUPABASE_JWT_SECRET"`
	AuthAudience           string `envconfig:"AUTH_AUDIENCE" default:"authenticated"`

	XenditSecretKey string `envconfig:"XENDIT_SECRET_KEY"`
	WebhookToken    string `envconfig:"WEBHOOK_TOKEN"`

	AllowedOrigins    string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	SecretKey         string `envconfig:"SECRET_KEY" default:"dev_secret"`
	InternalSecretKey string `envconfig:"INTERNAL_SECRET_KEY"`

	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	StoreTimeout   time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.IsProduction() && (cfg.SecretKey == "" || cfg.SecretKey == "dev_secret") {
		return nil, errors.New("load config: SECRET_KEY must be set in production")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOriginsList splits ALLOWED_ORIGINS on commas, dropping blanks.
func (c *Config) AllowedOriginsList() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// RestURL is the data API root of the managed store.
func (c *Config) RestURL() string {
	return strings.TrimRight(c.SupabaseURL, "/") + "/rest/v1"
}

// AuthURL is the identity provider root; it is also the expected token issuer.
func (c *Config) AuthURL() string {
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1"
}
