package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
)

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/tokens/refresh", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.TokenPairResponse{
			AccessToken:      "id|secret",
			IDToken:          "signed.jwt.here",
			TokenType:        "Bearer",
			ExpiresIn:        900,
			RefreshToken:     "new-refresh",
			RefreshExpiresIn: 1800,
		})
	}))
	defer server.Close()

	client := authsdk.NewSDKClient(server.URL)
	pair, err := client.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	require.Equal(t, "id|secret", pair.AccessToken)
	require.Equal(t, "new-refresh", pair.RefreshToken)
	require.Equal(t, int64(900), pair.ExpiresIn)
}

func TestRefreshSurfacesOAuth2Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(authsdk.ErrorResponse{
			Error:            "invalid_grant",
			ErrorDescription: "invalid or expired refresh token",
		})
	}))
	defer server.Close()

	client := authsdk.NewSDKClient(server.URL)
	_, err := client.Refresh(context.Background(), "burned")
	require.Error(t, err)

	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, "invalid_grant", oe.Code)
	require.Equal(t, http.StatusUnauthorized, oe.StatusCode)
}

func TestRevoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/tokens/revoke", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "some-refresh", r.Form.Get("token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.RevokeResponse{Revoked: true})
	}))
	defer server.Close()

	client := authsdk.NewSDKClient(server.URL)
	revoked, err := client.Revoke(context.Background(), "some-refresh")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestAuthenticatedCallsCarryBearerHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer id|secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/userinfo":
			_ = json.NewEncoder(w).Encode(authsdk.UserInfoResponse{UserID: "u1", Email: "a@b.com"})
		case "/v1/api-tokens":
			_ = json.NewEncoder(w).Encode(authsdk.PersonalTokenListResponse{
				Tokens: []authsdk.PersonalTokenResponse{{ID: "t1", Name: "reporting"}},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := authsdk.NewSDKClient(server.URL)
	ctx := context.Background()

	info, err := client.GetUserInfo(ctx, "id|secret")
	require.NoError(t, err)
	require.Equal(t, "u1", info.UserID)

	tokens, err := client.ListPersonalTokens(ctx, "id|secret")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "reporting", tokens[0].Name)
}

func TestGetJWKS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[{"kty":"RSA","kid":"k1","n":"AQAB","e":"AQAB"}]}`))
	}))
	defer server.Close()

	client := authsdk.NewSDKClient(server.URL)
	jwks, err := client.GetJWKS(context.Background())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "k1", jwks.Keys[0].Kid)
}

func TestGetLiveness(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/livez", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authsdk.HealthResponse{Status: "ok", Version: "v0.1.0"})
	}))
	defer server.Close()

	client := authsdk.NewSDKClient(server.URL)
	health, err := client.GetLiveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}
