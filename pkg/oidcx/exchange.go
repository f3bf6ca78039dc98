package oidcx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RawTokenResponse is the provider token endpoint payload, untouched. The
// id_token inside it is unverified until it goes through ValidateIDToken.
type RawTokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// ExchangeCode trades an authorization code for the provider's token set
// with a client_secret_post request to the token endpoint.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*RawTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(ErrorCodeTokenExchangeFailed, err.Error(), http.StatusBadGateway)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(ErrorCodeTokenExchangeFailed,
			fmt.Sprintf("token endpoint request failed: %v", err), http.StatusBadGateway)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newError(ErrorCodeTokenExchangeFailed, "failed to read token endpoint response", http.StatusBadGateway)
	}

	if resp.StatusCode != http.StatusOK {
		// Providers return an OAuth error document here; surface the code
		// when one is present so operators get more than a status line.
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		desc := fmt.Sprintf("token endpoint returned status %d", resp.StatusCode)
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
			desc = fmt.Sprintf("%s: %s %s", desc, oauthErr.Error, oauthErr.Description)
		}
		return nil, newError(ErrorCodeTokenExchangeFailed, desc, http.StatusBadGateway)
	}

	var tokens RawTokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, newError(ErrorCodeTokenExchangeFailed, "token endpoint returned invalid JSON", http.StatusBadGateway)
	}
	if tokens.IDToken == "" {
		return nil, newError(ErrorCodeTokenExchangeFailed, "token endpoint response is missing id_token", http.StatusBadGateway)
	}

	return &tokens, nil
}
