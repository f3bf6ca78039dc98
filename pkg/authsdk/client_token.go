package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Refresh trades a refresh token for a new token pair. The presented
// refresh token is revoked as a side effect; keep the returned one.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenPairResponse, error) {
	data := url.Values{
		"refresh_token": {refreshToken},
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/tokens/refresh",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var pair TokenPairResponse
	if err := decodeJSON(resp, &pair, http.StatusOK); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Revoke marks a refresh token revoked. The returned flag reports whether
// this call actually flipped the token; false means it was unknown or
// already revoked.
func (c *SDKClient) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	data := url.Values{
		"token": {refreshToken},
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/tokens/revoke",
		strings.NewReader(data.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return false, err
	}

	var result RevokeResponse
	if err := decodeJSON(resp, &result, http.StatusOK); err != nil {
		return false, err
	}
	return result.Revoked, nil
}

// MintPersonalToken creates a long-lived personal access token. The
// returned pair is the only time the token values are visible.
func (c *SDKClient) MintPersonalToken(
	ctx context.Context,
	accessToken string,
	req MintPersonalTokenRequest,
) (*TokenPairResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	headers := bearerHeaders(accessToken)
	headers["Content-Type"] = "application/json"

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/api-tokens", bytes.NewReader(body), headers)
	if err != nil {
		return nil, err
	}

	var pair TokenPairResponse
	if err := decodeJSON(resp, &pair, http.StatusCreated); err != nil {
		return nil, err
	}
	return &pair, nil
}

// ListPersonalTokens lists the caller's live personal access tokens.
func (c *SDKClient) ListPersonalTokens(ctx context.Context, accessToken string) ([]PersonalTokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/api-tokens", nil, bearerHeaders(accessToken))
	if err != nil {
		return nil, err
	}

	var list PersonalTokenListResponse
	if err := decodeJSON(resp, &list, http.StatusOK); err != nil {
		return nil, err
	}
	return list.Tokens, nil
}

// DeletePersonalToken revokes one of the caller's personal access tokens
// by id, bearer credential included.
func (c *SDKClient) DeletePersonalToken(ctx context.Context, accessToken, tokenID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/api-tokens/"+url.PathEscape(tokenID),
		nil, bearerHeaders(accessToken))
	if err != nil {
		return err
	}

	var result RevokeResponse
	return decodeJSON(resp, &result, http.StatusOK)
}

// Impersonate mints a token pair acting as another user. The caller needs
// the impersonation ability; every call is audit logged server-side.
func (c *SDKClient) Impersonate(
	ctx context.Context,
	accessToken string,
	req ImpersonateRequest,
) (*TokenPairResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	headers := bearerHeaders(accessToken)
	headers["Content-Type"] = "application/json"

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/impersonate", bytes.NewReader(body), headers)
	if err != nil {
		return nil, err
	}

	var pair TokenPairResponse
	if err := decodeJSON(resp, &pair, http.StatusCreated); err != nil {
		return nil, err
	}
	return &pair, nil
}

// GetUserInfo returns the profile of the user the access token belongs to.
func (c *SDKClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/userinfo", nil, bearerHeaders(accessToken))
	if err != nil {
		return nil, err
	}

	var info UserInfoResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}
	return &info, nil
}
