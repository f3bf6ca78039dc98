package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
	"github.com/aussiebroadwan/shopauth/pkg/oidcx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// AbilityImpersonate gates the impersonation endpoint.
const AbilityImpersonate = "users:impersonate"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	OIDCClient          *oidcx.Client
	TokenService        *service.TokenService
	ProvisioningService *service.ProvisioningService
	WebhookService      *service.WebhookService
}

func NewRouter(
	keys *jwtx.KeySet,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerTokens()
	r.registerPersonalTokens()
	r.registerImpersonation()
	r.registerUsers()
	r.registerWebhooks()
	r.registerDiscovery()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authn builds the bearer-credential middleware over the token service.
func (r *Router) authn() httpx.Middleware {
	return AuthnMiddleware(r.TokenService, r.store)
}

func (r *Router) registerSession() {
	h := &SessionHandler{
		OIDCClient:          r.OIDCClient,
		TokenService:        r.TokenService,
		ProvisioningService: r.ProvisioningService,
		Store:               r.store,
	}

	// GET /session/init - redirects out to the identity provider
	r.Mux.Handle("GET /v1/session/init",
		httpx.Chain(http.HandlerFunc(h.HandleInit),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /session/callback - strict rate limit (completes authentication)
	r.Mux.Handle("GET /v1/session/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTokens() {
	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/tokens/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /v1/tokens/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerPersonalTokens() {
	h := &PersonalTokensHandler{TokenService: r.TokenService, Store: r.store}

	r.Mux.Handle("POST /v1/api-tokens",
		httpx.Chain(http.HandlerFunc(h.HandleMint),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/api-tokens",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/api-tokens/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			r.authn(),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerImpersonation() {
	h := &ImpersonateHandler{TokenService: r.TokenService, Store: r.store}

	r.Mux.Handle("POST /v1/impersonate",
		httpx.Chain(h,
			r.authn(),
			httpx.RequireAnyAbility(AbilityImpersonate),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserInfoHandler{Store: r.store}

	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(h,
			r.authn(),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerWebhooks() {
	h := &WebhookHandler{WebhookService: r.WebhookService}

	// Shopify authenticates webhooks with an HMAC header, not a bearer
	// token, so this route bypasses authn.
	r.Mux.Handle("POST /v1/webhooks/shopify",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerDiscovery() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(OpenIDConfigurationHandler(r.issuer),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys))
}
