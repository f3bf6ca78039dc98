package oidcx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the verified payload of a federated ID token. Values
// only ever come out of a successful ValidateIDToken call; never build one
// from unverified input.
type IdentityClaims struct {
	Subject   string
	Email     string
	Name      string
	Issuer    string
	Audience  string
	Nonce     string
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Provider-specific extensions Shopify includes for staff logins.
	Locale   string
	ShopID   string
	ShopName string
	StaffID  string

	// Extra holds every claim not lifted into a named field, so callers
	// like the provisioning layer can pick up provider additions without
	// a schema change here.
	Extra map[string]any
}

// ValidateIDToken verifies the raw ID token's signature against the
// provider JWKS and validates issuer, audience, expiry, and the
// session-bound nonce. The nonce is consumed on success so the same token
// can never validate twice. No other side effects: user provisioning is the
// caller's problem.
func (c *Client) ValidateIDToken(ctx context.Context, sess Sessions, raw string) (*IdentityClaims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, newError(ErrorCodeInvalidTokenFormat, "token is not in valid JWT format", http.StatusUnauthorized)
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, newError(ErrorCodeInvalidTokenFormat, "token header is not valid base64url", http.StatusUnauthorized)
	}

	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, newError(ErrorCodeInvalidTokenFormat, "token header is not valid JSON", http.StatusUnauthorized)
	}
	if header.Kid == "" {
		return nil, newError(ErrorCodeMissingKID, "token is missing kid parameter in header", http.StatusUnauthorized)
	}

	// Algorithm comes from the header, defaulting to RS256, and must match
	// the RSA key type the JWKS gives us.
	alg := header.Alg
	if alg == "" {
		alg = "RS256"
	}
	if !strings.HasPrefix(alg, "RS") {
		return nil, newError(ErrorCodeInvalidSignature,
			fmt.Sprintf("token algorithm %q does not match key type", alg), http.StatusUnauthorized)
	}

	pub, err := c.keys.GetKeyByKid(ctx, header.Kid)
	if err != nil {
		return nil, err
	}

	// Claim checks below are done by hand so expiry stays an exclusive
	// boundary (exp == now is already expired) and errors stay typed.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithoutClaimsValidation(),
	)

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}); err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, newError(ErrorCodeInvalidSignature, "token signature validation failed", http.StatusUnauthorized)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, newError(ErrorCodeInvalidTokenFormat, "token is not in valid JWT format", http.StatusUnauthorized)
		default:
			return nil, newError(ErrorCodeValidationFailed, err.Error(), http.StatusInternalServerError)
		}
	}

	exp, ok := numericClaim(claims, "exp")
	if !ok || !time.Now().Before(time.Unix(exp, 0)) {
		return nil, newError(ErrorCodeTokenExpired, "the token has expired", http.StatusUnauthorized)
	}

	if iss, _ := claims["iss"].(string); iss != c.cfg.Issuer {
		return nil, newError(ErrorCodeInvalidIssuer, "token issuer does not match expected value", http.StatusUnauthorized)
	}

	if !audienceMatches(claims["aud"], c.cfg.ClientID) {
		return nil, newError(ErrorCodeInvalidAudience, "token audience does not match client ID", http.StatusUnauthorized)
	}

	nonce, _ := claims["nonce"].(string)
	stored, err := sess.Get(ctx, SessionKeyNonce)
	if err != nil || nonce == "" || nonce != stored {
		return nil, newError(ErrorCodeInvalidNonce, "token nonce validation failed", http.StatusUnauthorized)
	}

	// Nonce is single-use: clear it so a replayed token fails next time.
	if _, err := sess.Pull(ctx, SessionKeyNonce); err != nil {
		return nil, newError(ErrorCodeValidationFailed, "failed to consume session nonce", http.StatusInternalServerError)
	}

	return identityClaimsFromMap(claims), nil
}

func identityClaimsFromMap(claims jwt.MapClaims) *IdentityClaims {
	out := &IdentityClaims{
		Extra: make(map[string]any),
	}

	lifted := map[string]*string{
		"sub":       &out.Subject,
		"email":     &out.Email,
		"name":      &out.Name,
		"iss":       &out.Issuer,
		"nonce":     &out.Nonce,
		"locale":    &out.Locale,
		"shop_id":   &out.ShopID,
		"shop_name": &out.ShopName,
		"staff_id":  &out.StaffID,
	}

	for key, value := range claims {
		if dst, ok := lifted[key]; ok {
			*dst = claimString(value)
			continue
		}
		switch key {
		case "aud":
			out.Audience = firstAudience(value)
		case "iat":
			if sec, ok := numericClaim(claims, "iat"); ok {
				out.IssuedAt = time.Unix(sec, 0)
			}
		case "exp":
			if sec, ok := numericClaim(claims, "exp"); ok {
				out.ExpiresAt = time.Unix(sec, 0)
			}
		default:
			out.Extra[key] = value
		}
	}

	return out
}

// claimString renders a claim value as a string. Providers are sloppy about
// numeric ids (Shopify sends shop_id as a number), so numbers normalize too.
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func numericClaim(claims jwt.MapClaims, key string) (int64, bool) {
	switch t := claims[key].(type) {
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// audienceMatches requires the audience claim to equal the configured
// client id. A list audience matches when it contains the client id.
func audienceMatches(aud any, clientID string) bool {
	switch t := aud.(type) {
	case string:
		return t == clientID
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == clientID {
				return true
			}
		}
	}
	return false
}

func firstAudience(aud any) string {
	switch t := aud.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
