package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrMissingAccessToken is returned before any network activity when
// neither the call nor the client configuration provides a token.
var ErrMissingAccessToken = errors.New("shopify: access token is required")

// DefaultAPIVersion pins the Admin API version used when the configuration
// doesn't name one.
const DefaultAPIVersion = "2023-10"

// shopInfoTTL is how long GetShopInfo results are served from memory.
const shopInfoTTL = time.Hour

// callLimitHeader is Shopify's "used/total" bucket usage header.
const callLimitHeader = "X-Shopify-Shop-Api-Call-Limit"

// Config carries the shop coordinates and credentials for a Client.
type Config struct {
	// ShopDomain is the myshopify domain, without scheme.
	ShopDomain string
	APIVersion string

	// BaseURL overrides the https://{ShopDomain} origin when non-empty.
	// Lets tests point the client at a mock server.
	BaseURL string

	// AccessToken is the default Admin API token. Calls may override it
	// per request; with neither set the call fails fast.
	AccessToken string

	// Rate limiter tuning. Zero values use the package defaults.
	MaxCalls int
	Window   time.Duration
}

// Client is an authenticated Shopify Admin REST client. All methods return
// a normalized *Response and reserve the error return for local validation
// failures, so a non-nil error always means the request never left the
// process.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *RateLimiter
	log     *slog.Logger

	shopMu   sync.Mutex
	shopInfo map[string]cachedShopInfo
}

type cachedShopInfo struct {
	data      map[string]any
	expiresAt time.Time
}

// New builds a Client. Timeouts fail closed: 10s to connect, 30s total.
func New(cfg Config, log *slog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
			},
		},
		limiter:  NewRateLimiter(cfg.MaxCalls, cfg.Window, log),
		log:      log,
		shopInfo: make(map[string]cachedShopInfo),
	}
}

// Limiter exposes the client's rate limiter, mainly for tests.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// Get issues a GET request. An empty accessToken falls back to the
// configured default.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, accessToken string) (*Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, query, accessToken)
}

// Post issues a POST request with a JSON payload.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, accessToken string) (*Response, error) {
	return c.do(ctx, http.MethodPost, endpoint, payload, nil, accessToken)
}

// Put issues a PUT request with a JSON payload.
func (c *Client) Put(ctx context.Context, endpoint string, payload any, accessToken string) (*Response, error) {
	return c.do(ctx, http.MethodPut, endpoint, payload, nil, accessToken)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, query url.Values, accessToken string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, query, accessToken)
}

// GetShopInfo fetches the shop resource, serving repeats from a per-token
// in-memory cache for an hour. Shop metadata changes rarely and gets read
// on every webhook, so the cache pays for itself quickly.
func (c *Client) GetShopInfo(ctx context.Context, accessToken string) (*Response, error) {
	token := accessToken
	if token == "" {
		token = c.cfg.AccessToken
	}

	c.shopMu.Lock()
	if cached, ok := c.shopInfo[token]; ok && time.Now().Before(cached.expiresAt) {
		c.shopMu.Unlock()
		return Ok(cached.data, http.StatusOK), nil
	}
	c.shopMu.Unlock()

	resp, err := c.Get(ctx, "/shop.json", nil, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.Success {
		if _, ok := resp.Data["shop"]; ok {
			c.shopMu.Lock()
			c.shopInfo[token] = cachedShopInfo{
				data:      resp.Data,
				expiresAt: time.Now().Add(shopInfoTTL),
			}
			c.shopMu.Unlock()
		}
	}

	return resp, nil
}

// GetCustomer fetches a single customer by Shopify customer id.
func (c *Client) GetCustomer(ctx context.Context, customerID, accessToken string) (*Response, error) {
	return c.Get(ctx, "/customers/"+customerID+".json", nil, accessToken)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, query url.Values, accessToken string) (*Response, error) {
	token := accessToken
	if token == "" {
		token = c.cfg.AccessToken
	}
	if token == "" {
		c.log.Error("shopify api access token not provided", "endpoint", endpoint)
		return nil, ErrMissingAccessToken
	}

	endpoint = c.normalizeEndpoint(endpoint)

	origin := c.cfg.BaseURL
	if origin == "" {
		origin = "https://" + c.cfg.ShopDomain
	}
	reqURL := origin + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	// Advisory throttle: when the window is saturated we sit out the
	// remainder rather than surfacing a retryable error to the caller.
	// The loop re-consults the limiter after waiting so the retry is
	// recorded in the fresh window like any other call.
	for c.limiter.ShouldThrottle(c.cfg.ShopDomain, endpoint) {
		if err := c.limiter.AwaitReset(ctx, c.cfg.ShopDomain, endpoint); err != nil {
			return Err(nil, "Failed to connect to Shopify: "+err.Error(), http.StatusInternalServerError), nil
		}
	}

	var body io.Reader
	if payload != nil && (method == http.MethodPost || method == http.MethodPut) {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("shopify: encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("shopify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("shopify api request failed",
			"endpoint", endpoint,
			"error", err,
		)
		return Err(nil, "Failed to connect to Shopify: "+err.Error(), http.StatusInternalServerError), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Err(nil, "Failed to connect to Shopify: "+err.Error(), http.StatusInternalServerError), nil
	}

	var data map[string]any
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(raw, &data)
	}

	c.captureCallLimit(resp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Ok(data, resp.StatusCode), nil
	}

	message := fmt.Sprintf("Shopify API error: HTTP %d", resp.StatusCode)
	if data != nil {
		if errs, ok := data["errors"]; ok {
			if encoded, err := json.Marshal(errs); err == nil {
				message = string(encoded)
			}
		}
	}

	c.log.Error("shopify api error",
		"status", resp.StatusCode,
		"endpoint", endpoint,
	)

	return Err(data, message, resp.StatusCode), nil
}

// normalizeEndpoint guarantees the /admin/api/{version} prefix so callers
// can pass either a bare resource path or a fully qualified one.
func (c *Client) normalizeEndpoint(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	if !strings.Contains(endpoint, "/admin/api/") {
		endpoint = "/admin/api/" + c.cfg.APIVersion + endpoint
	}
	return endpoint
}

// captureCallLimit inspects Shopify's bucket usage header and logs a
// warning above 80% usage. Purely advisory.
func (c *Client) captureCallLimit(resp *http.Response) {
	limit := resp.Header.Get(callLimitHeader)
	if limit == "" {
		return
	}

	parts := strings.Split(limit, "/")
	if len(parts) != 2 {
		return
	}
	used, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	total, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || total == 0 {
		return
	}

	if float64(used)/float64(total) > 0.8 {
		c.log.Warn("approaching shopify api rate limit",
			"limit", limit,
			"shop", c.cfg.ShopDomain,
		)
	}
}
