package httpx

import (
	"net/http"
	"strings"
)

// Middleware is the standard wrap-a-handler shape.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h outermost-first, so Chain(h, a, b) runs
// a, then b, then h.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// AbilityWildcard grants every ability. Tokens minted without an explicit
// ability list carry this.
const AbilityWildcard = "*"

// RequireAnyAbility the caller's token must carry at least one of the
// listed abilities. The wildcard ability always passes.
func RequireAnyAbility(required ...string) Middleware {
	want := make(map[string]struct{}, len(required))
	for _, s := range required {
		want[s] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, s := range abilitiesFromCtx(r.Context()) {
				if s == AbilityWildcard {
					next.ServeHTTP(w, r)
					return
				}
				if _, ok := want[s]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeBearerScopeError(w, http.StatusForbidden, required...)
		})
	}
}

// RequireAllAbilities the caller's token must carry every ability listed.
// The wildcard ability always passes.
func RequireAllAbilities(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := make(map[string]struct{})
			for _, s := range abilitiesFromCtx(r.Context()) {
				if s == AbilityWildcard {
					next.ServeHTTP(w, r)
					return
				}
				have[s] = struct{}{}
			}

			for _, req := range required {
				if _, ok := have[req]; !ok {
					writeBearerScopeError(w, http.StatusForbidden, required...)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteBearerError writes an RFC 6750 invalid_token challenge. The authn
// middleware in the HTTP layer uses this for every bearer failure so
// responses never distinguish "unknown" from "revoked".
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}

// RFC 6750-compliant error response for bearer insufficient_scope.
func writeBearerScopeError(w http.ResponseWriter, code int, required ...string) {
	w.Header().
		Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
	w.WriteHeader(code)
	_, _ = w.Write([]byte("insufficient_scope"))
}
