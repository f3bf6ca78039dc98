package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// AuthnMiddleware authenticates the opaque bearer credential on each
// request and loads the caller's identity into the request context. The
// impersonation audit trail is consulted so downstream handlers can tell
// an impersonated session from a normal one.
func AuthnMiddleware(tokens *service.TokenService, st store.Store) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearerToken(r)
			if !ok {
				httpx.WriteBearerError(w, "missing bearer token")
				return
			}

			token, user, err := tokens.AuthenticateBearer(ctx, raw)
			if err != nil {
				if !errors.Is(err, service.ErrInvalidAccessToken) {
					slogx.FromContext(ctx).Error("bearer authentication failed", "err", err)
				}
				httpx.WriteBearerError(w, "invalid or expired access token")
				return
			}

			impersonatorID := ""
			if entry, err := st.ImpersonationLogs().GetImpersonationLogByAccessTokenID(ctx, token.ID); err == nil {
				impersonatorID = entry.ImpersonatorID
			} else if !errors.Is(err, store.ErrNotFound) {
				slogx.FromContext(ctx).Warn("impersonation lookup failed", "token_id", token.ID, "err", err)
			}

			ctx = httpx.ContextWithAuth(ctx, user.ID, token.ID, token.Abilities, impersonatorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
