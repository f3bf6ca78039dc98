package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/shopauth/pkg/authsdk"
	"github.com/aussiebroadwan/shopauth/pkg/httpx"
	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
// External verifiers use these keys to check the ID tokens we mint.
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}

// OpenIDConfigurationHandler publishes the discovery document for our own
// issued tokens.
func OpenIDConfigurationHandler(issuer string) http.HandlerFunc {
	issuer = strings.TrimSuffix(issuer, "/")
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.OpenIDConfigurationResponse{
			Issuer:                           issuer,
			AuthorizationEndpoint:            issuer + "/v1/session/init",
			TokenEndpoint:                    issuer + "/v1/tokens/refresh",
			UserinfoEndpoint:                 issuer + "/v1/userinfo",
			JWKSURI:                          issuer + "/.well-known/jwks.json",
			IDTokenSigningAlgValuesSupported: []string{"RS256"},
			SubjectTypesSupported:            []string{"public"},
			ResponseTypesSupported:           []string{"code"},
		})
	}
}
