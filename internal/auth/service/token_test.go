package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/shopauth/pkg/cryptox"
	"github.com/aussiebroadwan/shopauth/pkg/idx"
	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
)

const testIssuer = "https://auth.demo-shop.example.com"

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	s, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSigner(t *testing.T) *jwtx.Signer {
	t.Helper()

	pemKey, err := cryptox.GenerateRSAKey(2048)
	require.NoError(t, err)
	signer, err := jwtx.NewSignerRS256("test-key-1", pemKey)
	require.NoError(t, err)
	return signer
}

func newTokenService(t *testing.T, st store.Store) *service.TokenService {
	t.Helper()
	return &service.TokenService{
		Signer: newTestSigner(t),
		Store:  st,
		Issuer: testIssuer,
	}
}

func seedUser(t *testing.T, s store.Store) domain.User {
	t.Helper()
	u := domain.User{
		ID:             idx.New().String(),
		Email:          idx.New().String() + "@demo-shop.myshopify.com",
		Name:           "Demo Staff",
		ShopifySubject: "sub-" + idx.New().String(),
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestMintTokenPairDefaults(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintTokenPair(ctx, user, service.MintOptions{})
	require.NoError(t, err)

	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, int64(900), pair.ExpiresIn)
	require.Empty(t, pair.RefreshToken)

	t.Run("access token is id-pipe-secret with stored fingerprint", func(t *testing.T) {
		id, secret, ok := strings.Cut(pair.AccessToken, "|")
		require.True(t, ok)
		require.NotEmpty(t, secret)

		stored, err := st.AccessTokens().GetAccessTokenByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, user.ID, stored.UserID)
		require.Equal(t, []string{"*"}, stored.Abilities)
		require.Equal(t, cryptox.FingerprintToken(secret), stored.Fingerprint)
		require.NotContains(t, stored.Fingerprint, secret)
	})

	t.Run("id token verifies against the published key", func(t *testing.T) {
		pub, err := svc.Signer.PublicJWK().PublicKey()
		require.NoError(t, err)

		claims := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(pair.IDToken, claims, func(*jwt.Token) (any, error) {
			return pub, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		require.NoError(t, err)

		require.Equal(t, testIssuer, claims["iss"])
		require.Equal(t, user.ID, claims["sub"])
		require.Equal(t, user.Email, claims["email"])
		require.Equal(t, user.Name, claims["name"])

		aud, err := claims.GetAudience()
		require.NoError(t, err)
		require.Equal(t, jwt.ClaimStrings{"shopify"}, aud)

		exp, err := claims.GetExpirationTime()
		require.NoError(t, err)
		iat, err := claims.GetIssuedAt()
		require.NoError(t, err)
		require.Equal(t, 15*time.Minute, exp.Sub(iat.Time))
	})
}

func TestMintTokenPairWithRefreshAndAbilities(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintTokenPair(ctx, user, service.MintOptions{
		Name:                "ci-runner",
		Abilities:           []string{"orders:read", "orders:write"},
		ExpiresIn:           5 * time.Minute,
		IncludeRefreshToken: true,
	})
	require.NoError(t, err)

	require.Equal(t, int64(300), pair.ExpiresIn)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, int64((30 * 24 * time.Hour).Seconds()), pair.RefreshExpiresIn)

	stored, err := st.RefreshTokens().GetRefreshTokenByValue(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, stored.UserID)
	require.Equal(t, domain.ClientIDShopify, stored.ClientID)
	require.Equal(t, "ci-runner", stored.Name)
	require.Equal(t, []string{"orders:read", "orders:write"}, stored.Abilities)
	require.False(t, stored.Revoked)
}

func TestMintTokenPairImpersonation(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	admin := seedUser(t, st)
	target := seedUser(t, st)

	before := time.Now()
	pair, err := svc.MintTokenPair(ctx, target, service.MintOptions{
		Name:           "impersonation",
		ImpersonatorID: admin.ID,
	})
	require.NoError(t, err)

	logs, err := st.ImpersonationLogs().ListImpersonationLogsByImpersonator(ctx, admin.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	require.Equal(t, admin.ID, entry.ImpersonatorID)
	require.Equal(t, target.ID, entry.ImpersonatedID)

	id, _, _ := strings.Cut(pair.AccessToken, "|")
	require.Equal(t, id, entry.AccessTokenID)

	// Audit record outlives the 15 minute token: default is one day.
	require.WithinDuration(t, before.Add(24*time.Hour), entry.ExpiresAt, 5*time.Second)
}

func TestMintPersonalAccessToken(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	before := time.Now()
	pair, err := svc.MintPersonalAccessToken(ctx, user, "reporting script", []string{"orders:read"})
	require.NoError(t, err)

	year := int64((365 * 24 * time.Hour).Seconds())
	require.Equal(t, year, pair.ExpiresIn)
	require.Equal(t, year, pair.RefreshExpiresIn)

	t.Run("appears in the personal token listing", func(t *testing.T) {
		list, err := svc.ListPersonalTokens(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)

		require.Equal(t, "reporting script", list[0].Name)
		require.Equal(t, []string{"orders:read"}, list[0].Scopes)
		require.WithinDuration(t, before.Add(365*24*time.Hour), list[0].ExpiresAt, 5*time.Second)
	})

	t.Run("session refresh tokens are not listed", func(t *testing.T) {
		_, err := svc.MintTokenPair(ctx, user, service.MintOptions{IncludeRefreshToken: true})
		require.NoError(t, err)

		list, err := svc.ListPersonalTokens(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
	})
}

func TestDeletePersonalToken(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintPersonalAccessToken(ctx, user, "ci deploy key", nil)
	require.NoError(t, err)

	list, err := svc.ListPersonalTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	deleted, err := svc.DeletePersonalToken(ctx, user.ID, list[0].ID)
	require.NoError(t, err)
	require.True(t, deleted)

	t.Run("disappears from the listing", func(t *testing.T) {
		list, err := svc.ListPersonalTokens(ctx, user.ID)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("bearer credential dies with it", func(t *testing.T) {
		_, _, err := svc.AuthenticateBearer(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidAccessToken)
	})

	t.Run("second delete reports false", func(t *testing.T) {
		deleted, err := svc.DeletePersonalToken(ctx, user.ID, list[0].ID)
		require.NoError(t, err)
		require.False(t, deleted)
	})

	t.Run("other users cannot delete it", func(t *testing.T) {
		other := seedUser(t, st)
		_, err := svc.MintPersonalAccessToken(ctx, user, "backup key", nil)
		require.NoError(t, err)

		fresh, err := svc.ListPersonalTokens(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, fresh, 1)

		deleted, err := svc.DeletePersonalToken(ctx, other.ID, fresh[0].ID)
		require.NoError(t, err)
		require.False(t, deleted)
	})
}

func TestRefreshRotation(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintTokenPair(ctx, user, service.MintOptions{
		Abilities:           []string{"orders:read"},
		IncludeRefreshToken: true,
	})
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)

	t.Run("abilities carry over", func(t *testing.T) {
		child, err := st.RefreshTokens().GetRefreshTokenByValue(ctx, rotated.RefreshToken)
		require.NoError(t, err)
		require.Equal(t, []string{"orders:read"}, child.Abilities)
	})

	t.Run("remaining lifetime shrinks, never resets", func(t *testing.T) {
		require.LessOrEqual(t, rotated.RefreshExpiresIn, int64((30*24*time.Hour).Seconds()))

		parent, err := st.RefreshTokens().GetRefreshTokenByValue(ctx, pair.RefreshToken)
		require.NoError(t, err)
		child, err := st.RefreshTokens().GetRefreshTokenByValue(ctx, rotated.RefreshToken)
		require.NoError(t, err)
		require.False(t, child.ExpiresAt.After(parent.ExpiresAt.Add(time.Second)))
	})

	t.Run("a value rotates at most once", func(t *testing.T) {
		_, err := svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})

	t.Run("unknown value is rejected", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "no-such-token")
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})
}

func TestRefreshConcurrentRotation(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintTokenPair(ctx, user, service.MintOptions{IncludeRefreshToken: true})
	require.NoError(t, err)

	// Two racing refreshes of the same value: the conditional revoke
	// inside the transaction lets exactly one of them win.
	start := make(chan struct{})
	results := make(chan error, 2)
	for range 2 {
		go func() {
			<-start
			_, err := svc.Refresh(ctx, pair.RefreshToken)
			results <- err
		}()
	}
	close(start)

	var successes int
	for range 2 {
		if err := <-results; err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes, "exactly one concurrent refresh may rotate the value")

	// The contested value is burned for everyone afterwards.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidRefresh)
}

func TestRefreshRejectsExpired(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	expired := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Token:     "expired-value",
		ClientID:  domain.ClientIDShopify,
		Abilities: []string{"*"},
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, expired))

	_, err := svc.Refresh(ctx, "expired-value")
	require.ErrorIs(t, err, service.ErrInvalidRefresh)
}

func TestRevoke(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintTokenPair(ctx, user, service.MintOptions{IncludeRefreshToken: true})
	require.NoError(t, err)

	t.Run("first call flips, second reports already gone", func(t *testing.T) {
		ok, err := svc.Revoke(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = svc.Revoke(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown value is false, not an error", func(t *testing.T) {
		ok, err := svc.Revoke(ctx, "never-issued")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("revoked token cannot refresh", func(t *testing.T) {
		_, err := svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})
}

func TestAuthenticateBearer(t *testing.T) {
	st := newTestStore(t)
	svc := newTokenService(t, st)
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := svc.MintTokenPair(ctx, user, service.MintOptions{Abilities: []string{"orders:read"}})
	require.NoError(t, err)

	t.Run("valid credential resolves token and user", func(t *testing.T) {
		token, got, err := svc.AuthenticateBearer(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
		require.Equal(t, []string{"orders:read"}, token.Abilities)

		stored, err := st.AccessTokens().GetAccessTokenByID(ctx, token.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.LastUsedAt)
	})

	t.Run("wrong secret", func(t *testing.T) {
		id, _, _ := strings.Cut(pair.AccessToken, "|")
		_, _, err := svc.AuthenticateBearer(ctx, id+"|wrong-secret")
		require.ErrorIs(t, err, service.ErrInvalidAccessToken)
	})

	t.Run("malformed credential", func(t *testing.T) {
		_, _, err := svc.AuthenticateBearer(ctx, "no-pipe-here")
		require.ErrorIs(t, err, service.ErrInvalidAccessToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := svc.MintTokenPair(ctx, user, service.MintOptions{ExpiresIn: time.Nanosecond})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)

		_, _, err = svc.AuthenticateBearer(ctx, expired.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidAccessToken)
	})
}
