package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/idx"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"id":42}`)

	require.True(t, service.VerifyWebhookSignature("s3cret", body, signBody("s3cret", body)))
	require.False(t, service.VerifyWebhookSignature("s3cret", body, signBody("wrong", body)))
	require.False(t, service.VerifyWebhookSignature("s3cret", []byte(`{"id":43}`), signBody("s3cret", body)))
	require.False(t, service.VerifyWebhookSignature("s3cret", body, ""))
	require.False(t, service.VerifyWebhookSignature("", body, signBody("", body)))
}

func TestWebhookHandle(t *testing.T) {
	st := newTestStore(t)
	svc := &service.WebhookService{Store: st}
	ctx := context.Background()

	t.Run("customers/update syncs profile by subject", func(t *testing.T) {
		u := domain.User{
			ID:             idx.New().String(),
			Email:          "before@demo-shop.myshopify.com",
			Name:           "Before",
			ShopifySubject: "7001",
		}
		require.NoError(t, st.Users().CreateUser(ctx, u))

		payload := []byte(`{"id":7001,"email":"after@demo-shop.myshopify.com","first_name":"After","last_name":"Update"}`)
		require.NoError(t, svc.Handle(ctx, service.TopicCustomersUpdate, payload))

		got, err := st.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "after@demo-shop.myshopify.com", got.Email)
		require.Equal(t, "After Update", got.Name)
	})

	t.Run("customers/update for a stranger is a no-op", func(t *testing.T) {
		payload := []byte(`{"id":9999,"email":"nobody@demo-shop.myshopify.com"}`)
		require.NoError(t, svc.Handle(ctx, service.TopicCustomersUpdate, payload))
	})

	t.Run("customers/delete removes the user", func(t *testing.T) {
		u := domain.User{
			ID:             idx.New().String(),
			Email:          "gone@demo-shop.myshopify.com",
			ShopifySubject: "7002",
		}
		require.NoError(t, st.Users().CreateUser(ctx, u))

		require.NoError(t, svc.Handle(ctx, service.TopicCustomersDelete, []byte(`{"id":7002}`)))

		_, err := st.Users().GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("shop/update and app/uninstalled are accepted", func(t *testing.T) {
		require.NoError(t, svc.Handle(ctx, service.TopicShopUpdate, []byte(`{"name":"demo-shop"}`)))
		require.NoError(t, svc.Handle(ctx, service.TopicAppUninstalled, []byte(`{}`)))
	})

	t.Run("unknown topic errors", func(t *testing.T) {
		err := svc.Handle(ctx, "products/create", []byte(`{}`))
		require.ErrorIs(t, err, service.ErrUnknownTopic)
	})
}

func TestAppUninstallKillsLiveCredentials(t *testing.T) {
	st := newTestStore(t)
	tokens := newTokenService(t, st)
	webhooks := &service.WebhookService{Store: st}
	ctx := context.Background()
	user := seedUser(t, st)

	pair, err := tokens.MintTokenPair(ctx, user, service.MintOptions{IncludeRefreshToken: true})
	require.NoError(t, err)

	// Both halves of the credential work before the uninstall lands.
	_, _, err = tokens.AuthenticateBearer(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, webhooks.Handle(ctx, service.TopicAppUninstalled, []byte(`{}`)))

	t.Run("bearer credential is gone", func(t *testing.T) {
		_, _, err := tokens.AuthenticateBearer(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrInvalidAccessToken)
	})

	t.Run("refresh token is revoked", func(t *testing.T) {
		_, err := tokens.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, service.ErrInvalidRefresh)
	})
}
