package authsdk

import (
	"time"

	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
)

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing HTTP error responses. Client code
// should use the OAuth2Error type from errors.go instead.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenPairResponse is the token issuance payload returned by the login
// callback, the refresh endpoint, and personal-token minting.
type TokenPairResponse struct {
	// AccessToken is the opaque bearer credential in "{id}|{secret}" form.
	// The secret half is only ever visible in this response.
	AccessToken string `json:"access_token"`

	// IDToken is a signed JWT describing the authenticated user, verifiable
	// against the JWKS endpoint.
	IDToken string `json:"id_token"`

	// TokenType is always "Bearer" per OAuth2 spec
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is the opaque refresh token, when one was issued
	RefreshToken string `json:"refresh_token,omitempty"`

	// RefreshExpiresIn is the refresh token lifetime in seconds
	RefreshExpiresIn int64 `json:"refresh_expires_in,omitempty"`
}

// RevokeResponse reports whether a revocation call actually flipped a
// token. False means the token was unknown or already revoked.
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// ============================================================================
// Personal Access Token Types
// ============================================================================

// MintPersonalTokenRequest asks for a new long-lived personal token.
type MintPersonalTokenRequest struct {
	// Name labels the token in listings (e.g. "reporting script")
	Name string `json:"name"`

	// Scopes restrict what the token may do. Empty means full access.
	Scopes []string `json:"scopes,omitempty"`
}

// PersonalTokenResponse describes one live personal access token. The
// token value itself is never included; it was shown once at mint time.
type PersonalTokenResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PersonalTokenListResponse wraps the token listing.
type PersonalTokenListResponse struct {
	Tokens []PersonalTokenResponse `json:"tokens"`
}

// ============================================================================
// Impersonation Types
// ============================================================================

// ImpersonateRequest asks for a token pair acting as another user.
type ImpersonateRequest struct {
	// UserID is the user to impersonate
	UserID string `json:"user_id"`

	// ExpiresIn optionally bounds the impersonation token lifetime in
	// seconds. Zero uses the service default.
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// ============================================================================
// User Types
// ============================================================================

// UserInfoResponse describes the authenticated user.
type UserInfoResponse struct {
	// UserID is the unique identifier for the user
	UserID string `json:"user_id"`

	// Email is the user's email address from the identity provider
	Email string `json:"email"`

	// Name is the user's display name
	Name string `json:"name,omitempty"`

	// Metadata carries provider claims synced at login (locale, shop_id, ...)
	Metadata map[string]string `json:"metadata,omitempty"`

	// ImpersonatorID is set when this session is an impersonation
	ImpersonatorID string `json:"impersonator_id,omitempty"`
}

// ============================================================================
// Discovery and Health Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set. This is returned from the
// GET /.well-known/jwks.json endpoint and contains public keys used to
// verify ID token signatures.
type JWKSResponse jwtx.JWKS

// OpenIDConfigurationResponse is the subset of OIDC discovery metadata the
// service publishes for its own issued tokens.
type OpenIDConfigurationResponse struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserinfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
}

// HealthResponse is returned by the /livez and /readyz probes.
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the ID token signing capability status
	Signer string `json:"signer"`
}
