package domain

import "time"

// Client ids a token pair can be bound to. Shopify is the default audience
// for interactive sessions; personal_access marks user-minted long-lived
// tokens so they can be listed and managed separately.
const (
	ClientIDShopify        = "shopify"
	ClientIDPersonalAccess = "personal_access"
)

// TokenTypeBearer is the only token type we issue.
const TokenTypeBearer = "Bearer"

// TokenPair is what a mint or refresh hands back: an opaque bearer
// credential plus a signed ID token, and optionally a refresh token.
// Built fresh every time, never persisted as a whole.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	IDToken          string `json:"id_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"` // seconds
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"` // seconds
}

// RefreshToken models the stored refresh token record. Token holds the
// opaque value verbatim: refresh lookup is an exact string match, and the
// value itself is already 256 bits of CSPRNG output.
type RefreshToken struct {
	ID            string
	UserID        string
	AccessTokenID string
	Token         string
	ClientID      string

	// Name and Abilities round-trip through the scope blob so personal
	// tokens can be listed with the label the user gave them.
	Name      string
	Abilities []string

	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the token can still be used for a refresh.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// RemainingTTL is how much lifetime the token has left. Rotation carries
// this forward so a refresh chain never outlives the original grant.
func (t RefreshToken) RemainingTTL(now time.Time) time.Duration {
	if !now.Before(t.ExpiresAt) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// AccessToken is the stored half of an opaque bearer credential. Clients
// hold "{id}|{secret}"; we keep only the SHA-256 fingerprint of the secret,
// so a database leak doesn't leak usable credentials.
type AccessToken struct {
	ID          string
	UserID      string
	Name        string
	Abilities   []string
	Fingerprint string
	LastUsedAt  *time.Time
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Valid reports whether the bearer credential is still usable.
func (t AccessToken) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// PersonalTokenSummary is the listing projection for a user's personal
// access tokens.
type PersonalTokenSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
