package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/shopauth/pkg/httpx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func authedRequest(abilities []string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/thing", nil)
	ctx := httpx.ContextWithAuth(context.Background(), "user-1", "token-1", abilities, "")
	return r.WithContext(ctx)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestContextAuthRoundTrip(t *testing.T) {
	ctx := httpx.ContextWithAuth(context.Background(), "user-1", "token-9", []string{"read"}, "admin-2")

	require.Equal(t, "user-1", httpx.UserIDFromContext(ctx))
	require.Equal(t, "token-9", httpx.TokenIDFromContext(ctx))
	require.Equal(t, "admin-2", httpx.ImpersonatorFromContext(ctx))

	// Direct logins carry no impersonator.
	direct := httpx.ContextWithAuth(context.Background(), "user-1", "token-9", nil, "")
	require.Empty(t, httpx.ImpersonatorFromContext(direct))
}

func TestRequireAnyAbility(t *testing.T) {
	h := httpx.RequireAnyAbility("tokens:read", "tokens:write")(okHandler())

	t.Run("matching ability", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest([]string{"tokens:read"}))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wildcard passes everything", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest([]string{"*"}))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing ability", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest([]string{"profile:read"}))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})

	t.Run("no abilities at all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRequireAllAbilities(t *testing.T) {
	h := httpx.RequireAllAbilities("tokens:read", "tokens:write")(okHandler())

	t.Run("all present", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest([]string{"tokens:write", "tokens:read"}))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("partial set is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest([]string{"tokens:read"}))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wildcard short-circuits", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authedRequest([]string{"*"}))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"id": "abc"}`, rec.Body.String())
}

func TestParseSpaceDelimitedFields(t *testing.T) {
	require.Nil(t, httpx.ParseSpaceDelimitedFields(""))
	require.Nil(t, httpx.ParseSpaceDelimitedFields("   "))
	require.Equal(t, []string{"a", "b"}, httpx.ParseSpaceDelimitedFields(" a  b "))
}

func TestIPKeyExtractor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:1234"
	require.Equal(t, "192.0.2.10", httpx.IPKeyExtractor(r))

	r.Header.Set("X-Real-IP", "198.51.100.7")
	require.Equal(t, "198.51.100.7", httpx.IPKeyExtractor(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 198.51.100.7")
	require.Equal(t, "203.0.113.5", httpx.IPKeyExtractor(r))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		Burst:             2,
	}
	h := httpx.RateLimitByIP(cfg)(okHandler())

	send := func(addr string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/tokens/refresh", nil)
		r.RemoteAddr = addr
		h.ServeHTTP(rec, r)
		return rec
	}

	require.Equal(t, http.StatusOK, send("192.0.2.1:1000").Code)
	require.Equal(t, http.StatusOK, send("192.0.2.1:1001").Code)

	rec := send("192.0.2.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	// A different client is unaffected.
	require.Equal(t, http.StatusOK, send("192.0.2.2:1000").Code)
}
