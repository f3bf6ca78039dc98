package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// PersonalTokensHandler serves the personal access token endpoints: mint
// on POST /v1/api-tokens, list on GET /v1/api-tokens, delete on
// DELETE /v1/api-tokens/{id}. All require an authenticated caller and
// operate only on that caller's tokens.
type PersonalTokensHandler struct {
	TokenService *service.TokenService
	Store        store.Store
}

func (h *PersonalTokensHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.MintPersonalTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authsdk.ErrInvalidJSONBody.WriteError(w)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"a token name is required").WriteError(w)
		return
	}

	user, err := h.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	pair, err := h.TokenService.MintPersonalAccessToken(ctx, user, req.Name, req.Scopes)
	if err != nil {
		log.Error("personal token mint failed", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	log.Info("personal token minted", "user_id", userID, "name", req.Name)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, tokenPairResponse(pair))
}

func (h *PersonalTokensHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	tokens, err := h.TokenService.ListPersonalTokens(ctx, userID)
	if err != nil {
		log.Error("personal token listing failed", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	response := authsdk.PersonalTokenListResponse{
		Tokens: make([]authsdk.PersonalTokenResponse, 0, len(tokens)),
	}
	for _, t := range tokens {
		response.Tokens = append(response.Tokens, authsdk.PersonalTokenResponse{
			ID:        t.ID,
			Name:      t.Name,
			Scopes:    t.Scopes,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}

func (h *PersonalTokensHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	tokenID := r.PathValue("id")
	if tokenID == "" {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"a token id is required").WriteError(w)
		return
	}

	deleted, err := h.TokenService.DeletePersonalToken(ctx, userID, tokenID)
	if err != nil {
		log.Error("personal token delete failed", "user_id", userID, "token_id", tokenID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	if !deleted {
		authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest,
			"no such token").WriteError(w)
		return
	}

	log.Info("personal token deleted", "user_id", userID, "token_id", tokenID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokeResponse{Revoked: true})
}
