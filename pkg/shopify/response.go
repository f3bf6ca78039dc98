// Package shopify is a small authenticated REST client for the Shopify
// Admin API with client-side rate limiting. Responses are normalized into a
// single envelope so callers never deal with transport errors or raw HTTP
// statuses directly.
package shopify

import "net/http"

// Response is the normalized result of any Shopify API call. Success
// carries Data; failure carries Errors and Message. Transport failures are
// folded into the same shape with Status 500 so callers have exactly one
// error path.
type Response struct {
	Success bool           `json:"success"`
	Status  int            `json:"status"`
	Data    map[string]any `json:"data,omitempty"`
	Errors  any            `json:"errors,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Ok wraps a parsed 2xx body.
func Ok(data map[string]any, status int) *Response {
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{Success: true, Status: status, Data: data}
}

// Err wraps a failed call. The provider's `errors` member is lifted out of
// the body when present so callers can inspect it without re-parsing.
func Err(data map[string]any, message string, status int) *Response {
	resp := &Response{Success: false, Status: status, Data: data, Message: message}
	if data != nil {
		if errs, ok := data["errors"]; ok {
			resp.Errors = errs
		}
	}
	return resp
}
