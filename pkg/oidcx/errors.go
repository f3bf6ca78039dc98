package oidcx

import (
	"fmt"
	"net/http"
)

// Protocol error codes surfaced to callers. These are machine-readable and
// stable; the descriptions are for log lines and operators, not end users.
const (
	ErrorCodeInvalidTokenFormat  = "invalid_token_format"
	ErrorCodeMissingKID          = "missing_kid"
	ErrorCodeUnknownKID          = "unknown_kid"
	ErrorCodeInvalidSignature    = "invalid_signature"
	ErrorCodeTokenExpired        = "token_expired"
	ErrorCodeInvalidIssuer       = "invalid_issuer"
	ErrorCodeInvalidAudience     = "invalid_audience"
	ErrorCodeInvalidNonce        = "invalid_nonce"
	ErrorCodeInvalidState        = "invalid_state"
	ErrorCodeJWKSInvalid         = "jwks_invalid"
	ErrorCodeJWKSUnavailable     = "jwks_unavailable"
	ErrorCodeInvalidJWK          = "invalid_jwk"
	ErrorCodeTokenExchangeFailed = "token_exchange_failed"
	ErrorCodeValidationFailed    = "validation_failed"
)

// Error is a typed OIDC protocol failure carrying a machine-readable code,
// a human description, and the HTTP status the external controller should
// map it to. Signature internals never leak past the description.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Status      int    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("oidcx: %s: %s", e.Code, e.Description)
}

func newError(code, description string, status int) *Error {
	if status == 0 {
		status = http.StatusUnauthorized
	}
	return &Error{Code: code, Description: description, Status: status}
}
