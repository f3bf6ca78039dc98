package shopify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Defaults match Shopify's REST leaky bucket for a standard plan: 2 calls
// per second per shop.
const (
	DefaultMaxCalls = 2
	DefaultWindow   = time.Second

	// resetBuffer pads the wait after a window expires so we don't race
	// the boundary and immediately trip the limit again.
	resetBuffer = 100 * time.Millisecond
)

// RateLimiter is an advisory client-side throttle, counted per (shop, last
// endpoint path segment) in fixed windows. It's there to avoid provider 429s,
// not to enforce admission control: concurrent callers may both slip under
// the limit and slightly exceed the configured rate, and that's fine.
type RateLimiter struct {
	maxCalls int
	window   time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter builds a limiter. Zero values fall back to the defaults.
func NewRateLimiter(maxCalls int, window time.Duration, log *slog.Logger) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCalls
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		log:      log,
		buckets:  make(map[string]*bucket),
	}
}

// ShouldThrottle records one attempted call against the (shop, endpoint)
// window and reports whether the caller is over the limit. An over-limit
// attempt is not counted, so the window drains on schedule.
func (rl *RateLimiter) ShouldThrottle(shop, endpoint string) bool {
	key := limiterKey(shop, endpoint)
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return false
	}

	if b.count >= rl.maxCalls {
		rl.log.Warn("shopify api rate limit reached",
			"shop", shop,
			"endpoint", endpoint,
			"max_calls", rl.maxCalls,
			"window", rl.window,
		)
		return true
	}

	b.count++
	return false
}

// AwaitReset blocks until the (shop, endpoint) window has expired, plus a
// small buffer. Returns early with the context error on cancellation.
func (rl *RateLimiter) AwaitReset(ctx context.Context, shop, endpoint string) error {
	key := limiterKey(shop, endpoint)

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	rl.mu.Unlock()

	if !ok {
		return nil
	}

	wait := time.Until(b.resetAt) + resetBuffer
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// limiterKey buckets by shop and the last path segment of the endpoint,
// query string excluded, so the same resource hit through different API
// version prefixes shares one window.
func limiterKey(shop, endpoint string) string {
	path := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Path != "" {
		path = u.Path
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return shop + ":" + segments[len(segments)-1]
}
