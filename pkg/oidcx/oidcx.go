// Package oidcx implements the relying-party half of an OpenID Connect
// authorization-code flow: building authorization URLs with CSRF state and
// replay-protection nonces, exchanging authorization codes at the provider's
// token endpoint, and validating returned ID tokens against the provider's
// published JWKS.
package oidcx

import (
	"context"
	"net"
	"net/http"
	"time"
)

// DefaultScope is the scope set requested when the caller doesn't ask for
// anything specific.
const DefaultScope = "openid email profile"

// Session keys used to carry the CSRF state and replay nonce between the
// outbound redirect and the provider callback.
const (
	SessionKeyState = "oidc_state"
	SessionKeyNonce = "oidc_nonce"
)

// Sessions is the per-browser-session key-value store the flow needs.
// Pull is a get-and-clear: it's how nonces become single-use.
type Sessions interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Pull(ctx context.Context, key string) (string, error)
}

// Config carries the identity-provider endpoints and client credentials.
// All fields come from service configuration at process start; nothing in
// this package reads ambient globals.
type Config struct {
	// Issuer is the expected `iss` claim, i.e. the provider origin
	// (for Shopify, the shop domain URL).
	Issuer string

	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizationEndpoint string
	TokenEndpoint         string
	JWKSURI               string

	// Scope overrides DefaultScope when non-empty.
	Scope string
}

// Client drives the authorization-code flow against one identity provider.
type Client struct {
	cfg  Config
	http *http.Client
	keys *KeyCache
}

// New builds a Client. The embedded HTTP client fails closed: 10s connect,
// 30s total per request.
func New(cfg Config) *Client {
	hc := newHTTPClient()
	return &Client{
		cfg:  cfg,
		http: hc,
		keys: NewKeyCache(cfg.JWKSURI, hc),
	}
}

// Keys exposes the JWKS cache, mainly for tests and diagnostics.
func (c *Client) Keys() *KeyCache { return c.keys }

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
		},
	}
}
