package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/cryptox"
	"github.com/aussiebroadwan/shopauth/pkg/idx"
	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

var (
	ErrInvalidRefresh     = errors.New("invalid_or_expired_refresh_token")
	ErrInvalidAccessToken = errors.New("invalid_access_token")
)

// TokenService mints, rotates, and revokes the service's own credentials:
// opaque bearer tokens, signed ID tokens, and refresh tokens. All writes to
// refresh_tokens and impersonation_logs go through here.
type TokenService struct {
	Signer *jwtx.Signer
	Store  store.Store
	Issuer string

	AccessTTL  time.Duration // default 15 minutes
	RefreshTTL time.Duration // default 30 days

	// ImpersonationLogTTL is the audit-record expiry used when the mint
	// didn't carry an explicit lifetime. It deliberately doesn't track
	// AccessTTL; the two defaults are configured independently.
	ImpersonationLogTTL time.Duration // default 24 hours
}

// MintOptions tune a single token pair mint. The zero value gives a
// wildcard-ability session token with the default lifetime and no refresh
// token.
type MintOptions struct {
	// Name labels the access token ("impersonation", a personal token's
	// user-supplied name, ...).
	Name string

	// Abilities defaults to the wildcard.
	Abilities []string

	// ExpiresIn overrides the access-token lifetime when positive.
	ExpiresIn time.Duration

	// ClientID becomes the ID token audience and the refresh token's
	// client binding. Defaults to the Shopify client.
	ClientID string

	// ImpersonatorID, when set, records an audit log entry for the mint.
	ImpersonatorID string

	IncludeRefreshToken bool

	// RefreshExpiresIn overrides the refresh-token lifetime when positive.
	RefreshExpiresIn time.Duration
}

// MintTokenPair issues a fresh access token, ID token, and optionally a
// refresh token for the user. Everything that touches the database happens
// in one transaction, so a failed mint leaves no stray rows.
func (s *TokenService) MintTokenPair(ctx context.Context, user domain.User, opts MintOptions) (*domain.TokenPair, error) {
	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := s.mint(ctx, tx, user, opts, time.Now())
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// MintPersonalAccessToken issues a long-lived, user-managed token pair. The
// name and abilities are carried in the refresh token's scope blob so
// ListPersonalTokens can show them later.
func (s *TokenService) MintPersonalAccessToken(ctx context.Context, user domain.User, name string, scopes []string) (*domain.TokenPair, error) {
	return s.MintTokenPair(ctx, user, MintOptions{
		Name:                name,
		Abilities:           scopes,
		ExpiresIn:           jwtx.DefaultPersonalAccessTokenTTL,
		ClientID:            domain.ClientIDPersonalAccess,
		IncludeRefreshToken: true,
		RefreshExpiresIn:    jwtx.DefaultPersonalAccessTokenTTL,
	})
}

// Refresh trades a refresh token for a brand-new token pair. Strict
// rotate-on-use: the old token is revoked with a conditional update inside
// the same transaction that creates its replacement, so one refresh token
// value rotates at most once no matter how many callers race it. The new
// refresh token only gets the lifetime the old one had left; a refresh
// chain never outlives its original grant.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	var pair *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		now := time.Now()

		old, err := tx.RefreshTokens().GetActiveRefreshTokenByValue(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		// The conditional update is the rotation lock: a concurrent
		// caller that read the same row gets flipped=false here and
		// fails, instead of minting a second child pair.
		flipped, err := tx.RefreshTokens().RevokeRefreshToken(ctx, old.ID)
		if err != nil {
			return err
		}
		if !flipped {
			log.Warn("refresh token raced another rotation", "token_id", old.ID)
			return ErrInvalidRefresh
		}

		user, err := tx.Users().GetUserByID(ctx, old.UserID)
		if err != nil {
			return err
		}

		pair, err = s.mint(ctx, tx, user, MintOptions{
			Name:                old.Name,
			Abilities:           old.Abilities,
			ClientID:            old.ClientID,
			IncludeRefreshToken: true,
			RefreshExpiresIn:    old.RemainingTTL(now),
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Revoke marks a refresh token revoked by its opaque value. An unknown or
// already-revoked token returns false, not an error: "already gone" is an
// expected outcome. Note there is no ownership check here; anyone holding
// the value can revoke it.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	t, err := s.Store.RefreshTokens().GetRefreshTokenByValue(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, t.ID)
}

// ListPersonalTokens returns the user's live personal access tokens,
// projected for display.
func (s *TokenService) ListPersonalTokens(ctx context.Context, userID string) ([]domain.PersonalTokenSummary, error) {
	tokens, err := s.Store.RefreshTokens().ListActivePersonalTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PersonalTokenSummary, 0, len(tokens))
	for _, t := range tokens {
		name := t.Name
		if name == "" {
			name = "Unnamed Token"
		}
		out = append(out, domain.PersonalTokenSummary{
			ID:        t.ID,
			Name:      name,
			Scopes:    t.Abilities,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}
	return out, nil
}

// DeletePersonalToken revokes one of the user's personal access tokens by
// id and removes its bearer credential with it. Tokens belonging to other
// users read as absent, so the false return covers both "never existed"
// and "not yours".
func (s *TokenService) DeletePersonalToken(ctx context.Context, userID, tokenID string) (bool, error) {
	var deleted bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		tokens, err := tx.RefreshTokens().ListActivePersonalTokens(ctx, userID)
		if err != nil {
			return err
		}

		var match *domain.RefreshToken
		for i := range tokens {
			if tokens[i].ID == tokenID {
				match = &tokens[i]
				break
			}
		}
		if match == nil {
			return nil
		}

		flipped, err := tx.RefreshTokens().RevokeRefreshToken(ctx, match.ID)
		if err != nil {
			return err
		}
		if err := tx.AccessTokens().DeleteAccessToken(ctx, match.AccessTokenID); err != nil {
			return err
		}
		deleted = flipped
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// AuthenticateBearer resolves an opaque "{id}|{secret}" bearer credential
// to its access token and owning user. The stored side is only a SHA-256
// fingerprint, so the comparison rebuilds it from the presented secret.
func (s *TokenService) AuthenticateBearer(ctx context.Context, plaintext string) (domain.AccessToken, domain.User, error) {
	id, secret, ok := strings.Cut(plaintext, "|")
	if !ok || id == "" || secret == "" {
		return domain.AccessToken{}, domain.User{}, ErrInvalidAccessToken
	}

	token, err := s.Store.AccessTokens().GetAccessTokenByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.AccessToken{}, domain.User{}, ErrInvalidAccessToken
		}
		return domain.AccessToken{}, domain.User{}, err
	}

	fp := cryptox.FingerprintToken(secret)
	if subtle.ConstantTimeCompare([]byte(fp), []byte(token.Fingerprint)) != 1 {
		return domain.AccessToken{}, domain.User{}, ErrInvalidAccessToken
	}
	if !token.Valid(time.Now()) {
		return domain.AccessToken{}, domain.User{}, ErrInvalidAccessToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, token.UserID)
	if err != nil {
		return domain.AccessToken{}, domain.User{}, err
	}

	if err := s.Store.AccessTokens().TouchAccessToken(ctx, token.ID, time.Now()); err != nil {
		slogx.FromContext(ctx).Warn("failed to touch access token", "token_id", token.ID, "err", err)
	}

	return token, user, nil
}

// mint does the actual issuance inside a caller-provided transaction.
func (s *TokenService) mint(ctx context.Context, tx store.Tx, user domain.User, opts MintOptions, now time.Time) (*domain.TokenPair, error) {
	abilities := opts.Abilities
	if len(abilities) == 0 {
		abilities = []string{"*"}
	}
	accessTTL := opts.ExpiresIn
	if accessTTL <= 0 {
		accessTTL = s.accessTTL()
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = domain.ClientIDShopify
	}

	// 1. Opaque bearer credential: random secret, fingerprint stored,
	// plaintext "{id}|{secret}" returned exactly once.
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	accessTokenID := idx.New().String()

	accessToken := domain.AccessToken{
		ID:          accessTokenID,
		UserID:      user.ID,
		Name:        opts.Name,
		Abilities:   abilities,
		Fingerprint: cryptox.FingerprintToken(secret),
		ExpiresAt:   now.Add(accessTTL),
	}
	if err := tx.AccessTokens().CreateAccessToken(ctx, accessToken); err != nil {
		return nil, err
	}

	// 2. Impersonation mints leave an audit record. An explicit token
	// lifetime carries over; otherwise the log gets its own default.
	if opts.ImpersonatorID != "" {
		logExpiry := now.Add(s.impersonationLogTTL())
		if opts.ExpiresIn > 0 {
			logExpiry = now.Add(opts.ExpiresIn)
		}
		entry := domain.ImpersonationLog{
			ID:             idx.New().String(),
			ImpersonatorID: opts.ImpersonatorID,
			ImpersonatedID: user.ID,
			AccessTokenID:  accessTokenID,
			ExpiresAt:      logExpiry,
		}
		if err := tx.ImpersonationLogs().CreateImpersonationLog(ctx, entry); err != nil {
			return nil, err
		}
	}

	// 3. Signed ID token over the same audience and lifetime.
	claims := jwtx.NewIDClaims(s.Issuer, user.ID, clientID, user.Email, user.Name, accessTTL, now)
	idToken, err := s.Signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	pair := &domain.TokenPair{
		AccessToken: accessTokenID + "|" + secret,
		IDToken:     idToken,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   int64(accessTTL.Seconds()),
	}

	// 4. Optional refresh token.
	if opts.IncludeRefreshToken {
		refreshTTL := opts.RefreshExpiresIn
		if refreshTTL <= 0 {
			refreshTTL = s.refreshTTL()
		}

		opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}

		refresh := domain.RefreshToken{
			ID:            idx.New().String(),
			UserID:        user.ID,
			AccessTokenID: accessTokenID,
			Token:         opaque,
			ClientID:      clientID,
			Name:          opts.Name,
			Abilities:     abilities,
			ExpiresAt:     now.Add(refreshTTL),
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
			return nil, err
		}

		pair.RefreshToken = opaque
		pair.RefreshExpiresIn = int64(refreshTTL.Seconds())
	}

	return pair, nil
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (s *TokenService) impersonationLogTTL() time.Duration {
	if s.ImpersonationLogTTL > 0 {
		return s.ImpersonationLogTTL
	}
	return 24 * time.Hour
}
