package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/idx"
	"github.com/aussiebroadwan/shopauth/pkg/oidcx"
)

func TestHousekeepingCleansExpiredRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, st)

	expired := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		Token:     "hk-expired",
		ClientID:  domain.ClientIDShopify,
		Abilities: []string{"*"},
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, expired))

	live := expired
	live.ID = idx.New().String()
	live.Token = "hk-live"
	live.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, live))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hk := service.NewHousekeepingService(st, logger, 50*time.Millisecond)
	hk.Start()
	time.Sleep(25 * time.Millisecond)
	hk.Stop()

	_, err := st.RefreshTokens().GetRefreshTokenByValue(ctx, "hk-expired")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.RefreshTokens().GetRefreshTokenByValue(ctx, "hk-live")
	require.NoError(t, err)
}

func TestBoundSession(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var sess oidcx.Sessions = &service.BoundSession{Store: st, SID: "sid-1"}
	other := &service.BoundSession{Store: st, SID: "sid-2"}

	require.NoError(t, sess.Put(ctx, "oidc_state", "abc"))

	t.Run("values are scoped to the session id", func(t *testing.T) {
		v, err := other.Get(ctx, "oidc_state")
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("pull is single use", func(t *testing.T) {
		v, err := sess.Pull(ctx, "oidc_state")
		require.NoError(t, err)
		require.Equal(t, "abc", v)

		v, err = sess.Pull(ctx, "oidc_state")
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("missing keys read as empty", func(t *testing.T) {
		v, err := sess.Get(ctx, "never-set")
		require.NoError(t, err)
		require.Empty(t, v)
	})
}
