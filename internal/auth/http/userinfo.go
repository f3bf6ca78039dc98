package http

import (
	"net/http"

	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// UserInfoHandler serves GET /v1/userinfo for the authenticated user.
type UserInfoHandler struct {
	Store store.Store
}

func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromContext(ctx)
	if userID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	user, err := h.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("failed to load user", "user_id", userID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	response := authsdk.UserInfoResponse{
		UserID:         user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Metadata:       user.Metadata,
		ImpersonatorID: httpx.ImpersonatorFromContext(ctx),
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, response)
}
