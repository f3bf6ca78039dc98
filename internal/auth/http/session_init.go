package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/cryptox"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/oidcx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// sidCookieName carries the opaque browser session id that scopes the
// login flow's state and nonce values.
const sidCookieName = "shopauth_sid"

// SessionHandler drives the OIDC authorization-code login flow: /init
// redirects out to the identity provider, /callback completes the login
// and mints the first token pair.
type SessionHandler struct {
	OIDCClient          *oidcx.Client
	TokenService        *service.TokenService
	ProvisioningService *service.ProvisioningService
	Store               store.Store
}

// HandleInit begins a login: allocate browser session state and redirect
// to the provider's authorization endpoint.
func (h *SessionHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	sid := h.ensureSID(w, r)
	sess := &service.BoundSession{Store: h.Store, SID: sid}

	authURL, err := h.OIDCClient.BuildAuthorizationURL(ctx, sess, oidcx.AuthorizeOptions{})
	if err != nil {
		log.Error("failed to build authorization URL", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback completes a login: verify state, exchange the code,
// validate the provider's ID token, provision the user, and answer with a
// locally minted token pair.
func (h *SessionHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	cookie, err := r.Cookie(sidCookieName)
	if err != nil || cookie.Value == "" {
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"no login session; start again at /v1/session/init").WriteError(w)
		return
	}
	sess := &service.BoundSession{Store: h.Store, SID: cookie.Value}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		// The provider bounced the user back with a denial.
		log.Warn("authorization denied upstream", "error", errCode)
		authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeAccessDenied,
			query.Get("error_description")).WriteError(w)
		return
	}

	if err := h.OIDCClient.VerifyState(ctx, sess, query.Get("state")); err != nil {
		writeOIDCError(w, log, err)
		return
	}

	code := query.Get("code")
	if code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	tokens, err := h.OIDCClient.ExchangeCode(ctx, code)
	if err != nil {
		writeOIDCError(w, log, err)
		return
	}

	claims, err := h.OIDCClient.ValidateIDToken(ctx, sess, tokens.IDToken)
	if err != nil {
		writeOIDCError(w, log, err)
		return
	}

	user, err := h.ProvisioningService.ProvisionFromClaims(ctx, claims)
	if err != nil {
		log.Error("user provisioning failed", "subject", claims.Subject, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	pair, err := h.TokenService.MintTokenPair(ctx, user, service.MintOptions{
		Name:                "login",
		IncludeRefreshToken: true,
	})
	if err != nil {
		log.Error("token mint failed", "user_id", user.ID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	log.Info("login completed", "user_id", user.ID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenPairResponse(pair))
}

// ensureSID returns the browser session id, setting a fresh cookie when
// none exists yet.
func (h *SessionHandler) ensureSID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sidCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	sid := cryptox.MustGenerateToken(cryptox.TokenSize128)
	http.SetCookie(w, &http.Cookie{
		Name:     sidCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(service.DefaultLoginSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// writeOIDCError maps a login-flow failure onto the wire. Typed flow
// errors keep their code and status; anything else is a 500.
func writeOIDCError(w http.ResponseWriter, log *slog.Logger, err error) {
	var oe *oidcx.Error
	if errors.As(err, &oe) {
		log.Warn("login flow rejected", "code", oe.Code, "err", err)
		authsdk.NewOAuth2Error(oe.Status, oe.Code, oe.Description).WriteError(w)
		return
	}
	log.Error("login flow failed", "err", err)
	authsdk.ErrServerError.WriteError(w)
}
