package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer string // Required: issuer claim for locally minted ID tokens

	// Upstream identity provider (Shopify OIDC)
	OIDCIssuer       string // Required: expected iss claim on provider ID tokens
	OIDCClientID     string // Required: our client id at the provider
	OIDCClientSecret string // Required: our client secret at the provider
	OIDCRedirectURI  string // Required: the /v1/session/callback URL as registered
	OIDCAuthorizeURL string // Required: provider authorization endpoint
	OIDCTokenURL     string // Required: provider token endpoint
	OIDCJWKSURI      string // Required: provider JWKS document
	OIDCScope        string // Optional: overrides the default "openid email profile"

	// Shopify Admin API
	ShopDomain         string // Required for API calls: e.g. demo-shop.myshopify.com
	ShopifyAPIVersion  string // Optional: Admin API version (default per client)
	ShopifyAccessToken string // Optional: shop-level admin token for webhook registration
	WebhookSecret      string // Required to accept webhooks: HMAC signing secret

	ShopifyRateLimitCalls  int           // Optional: outbound calls per window (default: 2)
	ShopifyRateLimitWindow time.Duration // Optional: outbound rate-limit window (default: 1s)

	SigningKeyFile string // Optional: path to RSA private key PEM (default: ephemeral key)
	SigningKeyID   string // Optional: kid published in the JWKS (default: generated)

	DatabaseFile string // Optional: path to SQLite database file (default: ./shopauth.db)

	AccessTokenTTL      time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL     time.Duration // Optional: refresh token lifetime (default: 30 days)
	ImpersonationLogTTL time.Duration // Optional: audit record lifetime (default: 24h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	// A local .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg := Config{
		Issuer: os.Getenv("AUTH_ISSUER"),

		OIDCIssuer:       os.Getenv("OIDC_ISSUER"),
		OIDCClientID:     getEnvOrDefault("OIDC_CLIENT_ID", "shopify"),
		OIDCClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
		OIDCRedirectURI:  os.Getenv("OIDC_REDIRECT_URI"),
		OIDCAuthorizeURL: os.Getenv("OIDC_AUTHORIZE_URL"),
		OIDCTokenURL:     os.Getenv("OIDC_TOKEN_URL"),
		OIDCJWKSURI:      os.Getenv("OIDC_JWKS_URI"),
		OIDCScope:        os.Getenv("OIDC_SCOPE"),

		ShopDomain:         os.Getenv("SHOPIFY_SHOP_DOMAIN"),
		ShopifyAPIVersion:  os.Getenv("SHOPIFY_API_VERSION"),
		ShopifyAccessToken: os.Getenv("SHOPIFY_ACCESS_TOKEN"),
		WebhookSecret:      os.Getenv("SHOPIFY_WEBHOOK_SECRET"),

		ShopifyRateLimitCalls:  getEnvIntOrDefault("SHOPIFY_RATE_LIMIT_CALLS", 0),
		ShopifyRateLimitWindow: getEnvDurationOrDefault("SHOPIFY_RATE_LIMIT_WINDOW", 0),

		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		SigningKeyID:   os.Getenv("AUTH_SIGNING_KEY_ID"),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "shopauth.db"),

		AccessTokenTTL:      getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", 0),
		RefreshTokenTTL:     getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", 0),
		ImpersonationLogTTL: getEnvDurationOrDefault("AUTH_IMPERSONATION_LOG_TTL", 0),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "shopauth"
	}

	// The common case: derive provider endpoints from the shop domain when
	// they weren't given explicitly.
	if cfg.ShopDomain != "" {
		shopURL := "https://" + cfg.ShopDomain
		if cfg.OIDCIssuer == "" {
			cfg.OIDCIssuer = shopURL
		}
		if cfg.OIDCAuthorizeURL == "" {
			cfg.OIDCAuthorizeURL = shopURL + "/admin/oauth/authorize"
		}
		if cfg.OIDCTokenURL == "" {
			cfg.OIDCTokenURL = shopURL + "/admin/oauth/access_token"
		}
		if cfg.OIDCJWKSURI == "" {
			cfg.OIDCJWKSURI = shopURL + "/.well-known/jwks.json"
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
