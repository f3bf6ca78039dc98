package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop people from accidently doing
// transactions within transactions.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	AccessTokens() AccessTokens
	ImpersonationLogs() ImpersonationLogs
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it
	// automatically handles commit/rollback logic. Refresh-token rotation
	// depends on it.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during provisioning from verified claims.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// GetUserByShopifySubject matches the provider `sub` claim.
	GetUserByShopifySubject(ctx context.Context, sub string) (domain.User, error)

	// UpdateUser replaces the mutable profile fields and bumps updated_at.
	UpdateUser(ctx context.Context, u domain.User) error

	// DeleteUser cascades to tokens (per schema). Driven by the
	// customers/delete webhook.
	DeleteUser(ctx context.Context, id string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByValue returns the token by its opaque value,
	// regardless of status. Used by revoke, where "already gone" matters.
	GetRefreshTokenByValue(ctx context.Context, token string) (domain.RefreshToken, error)

	// GetActiveRefreshTokenByValue returns the token only while
	// revoked=0 AND expires_at is in the future.
	GetActiveRefreshTokenByValue(ctx context.Context, token string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1 with a conditional update and
	// reports whether this call did the flipping. Run inside WithTx, the
	// false return is what holds the at-most-one-rotation guarantee.
	RevokeRefreshToken(ctx context.Context, id string) (bool, error)

	// ListActivePersonalTokens returns the user's not-revoked, not-expired
	// personal_access tokens, newest first.
	ListActivePersonalTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// RevokeAllRefreshTokens revokes every live refresh token. Driven by
	// the app/uninstalled webhook, where the whole credential population
	// dies at once.
	RevokeAllRefreshTokens(ctx context.Context) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type AccessTokens interface {
	// CreateAccessToken stores the fingerprint record for a freshly minted
	// bearer credential.
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	// GetAccessTokenByID fetches a token for bearer authentication.
	GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error)

	// TouchAccessToken bumps last_used_at.
	TouchAccessToken(ctx context.Context, id string, when time.Time) error

	// DeleteAccessToken removes a token, e.g. when its refresh token is
	// revoked.
	DeleteAccessToken(ctx context.Context, id string) error

	// DeleteAllAccessTokens removes every bearer credential, expired or
	// not. Paired with RevokeAllRefreshTokens on app/uninstalled.
	DeleteAllAccessTokens(ctx context.Context) error

	// DeleteExpiredAccessTokens is housekeeping.
	DeleteExpiredAccessTokens(ctx context.Context) error
}

type ImpersonationLogs interface {
	// CreateImpersonationLog appends one audit record. There is
	// deliberately no update or delete.
	CreateImpersonationLog(ctx context.Context, l domain.ImpersonationLog) error

	// ListImpersonationLogsByImpersonator returns an admin's audit trail,
	// newest first.
	ListImpersonationLogsByImpersonator(ctx context.Context, impersonatorID string) ([]domain.ImpersonationLog, error)

	// GetImpersonationLogByAccessTokenID resolves whether a bearer
	// credential was minted on someone's behalf.
	GetImpersonationLogByAccessTokenID(ctx context.Context, accessTokenID string) (domain.ImpersonationLog, error)
}

// Sessions is the durable per-browser-session key-value store backing the
// OIDC state and nonce round trip.
type Sessions interface {
	// PutSessionValue upserts one value under (sid, key).
	PutSessionValue(ctx context.Context, sid, key, value string, expiresAt time.Time) error

	// GetSessionValue reads a value; expired entries read as not found.
	GetSessionValue(ctx context.Context, sid, key string) (string, error)

	// PullSessionValue reads and deletes in one step. Single-use nonces
	// live and die here.
	PullSessionValue(ctx context.Context, sid, key string) (string, error)

	// DeleteExpiredSessionValues is housekeeping.
	DeleteExpiredSessionValues(ctx context.Context) error
}
