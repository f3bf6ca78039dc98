package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// tokenPairResponse projects a minted pair onto the wire type.
func tokenPairResponse(pair *domain.TokenPair) authsdk.TokenPairResponse {
	return authsdk.TokenPairResponse{
		AccessToken:      pair.AccessToken,
		IDToken:          pair.IDToken,
		TokenType:        pair.TokenType,
		ExpiresIn:        pair.ExpiresIn,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresIn: pair.RefreshExpiresIn,
	}
}

// requireForm rejects requests that aren't form-encoded and parses the
// body. Returns false after writing the error response.
func requireForm(w http.ResponseWriter, r *http.Request) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return false
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return false
	}
	return true
}

// RefreshHandler serves POST /v1/tokens/refresh.
// Accepts application/x-www-form-urlencoded with a refresh_token field.
type RefreshHandler struct {
	TokenService *service.TokenService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if !requireForm(w, r) {
		return
	}

	refresh := r.Form.Get("refresh_token")
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.TokenService.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("refresh failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse(pair))
}

// RevokeHandler serves POST /v1/tokens/revoke.
// Accepts application/x-www-form-urlencoded with a token field. Always
// answers 200 with a revoked flag; "already gone" is not an error.
type RevokeHandler struct {
	TokenService *service.TokenService
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if !requireForm(w, r) {
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	revoked, err := h.TokenService.Revoke(ctx, token)
	if err != nil {
		log.Error("revoke failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokeResponse{Revoked: revoked})
}
