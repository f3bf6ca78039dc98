package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for the local issuing flows. These provide
// sensible security defaults but each can be overridden via configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	// Short-lived for security.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Longer-lived for user convenience.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	// DefaultPersonalAccessTokenTTL is the lifetime for user-minted
	// personal access tokens.
	DefaultPersonalAccessTokenTTL = 365 * 24 * time.Hour
)

// IDClaims are the claims we embed in locally issued OIDC ID tokens.
// Keeping changes additive preserves compatibility for downstream verifiers.
type IDClaims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user
	Email string `json:"email,omitempty"`

	// Name is the display name for the user
	Name string `json:"name,omitempty"`
}

// NewIDClaims builds minimally-correct ID token claims.
func NewIDClaims(
	issuer, subject, audience string,
	email, name string,
	ttl time.Duration,
	now time.Time,
) IDClaims {
	return IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Name:  name,
	}
}
