package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// ImpersonateHandler serves POST /v1/impersonate. The caller gets a token
// pair acting as the target user; every mint is written to the audit log.
type ImpersonateHandler struct {
	TokenService *service.TokenService
	Store        store.Store
}

func (h *ImpersonateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	callerID := httpx.UserIDFromContext(ctx)
	if callerID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	var req authsdk.ImpersonateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authsdk.ErrInvalidJSONBody.WriteError(w)
		return
	}
	if req.UserID == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.UserID == callerID {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"cannot impersonate yourself").WriteError(w)
		return
	}

	target, err := h.Store.Users().GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authsdk.NewOAuth2Error(http.StatusNotFound, authsdk.ErrorCodeInvalidRequest,
				"no such user").WriteError(w)
			return
		}
		log.Error("failed to load impersonation target", "user_id", req.UserID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	pair, err := h.TokenService.MintTokenPair(ctx, target, service.MintOptions{
		Name:           "impersonation",
		ExpiresIn:      time.Duration(req.ExpiresIn) * time.Second,
		ImpersonatorID: callerID,
	})
	if err != nil {
		log.Error("impersonation mint failed", "impersonator_id", callerID,
			"target_id", target.ID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	log.Info("impersonation token minted", "impersonator_id", callerID, "target_id", target.ID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, tokenPairResponse(pair))
}
