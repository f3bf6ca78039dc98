package oidcx

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
)

// DefaultKeyTTL is how long fetched JWKS documents and converted keys are
// trusted before a refetch.
const DefaultKeyTTL = time.Hour

// KeyCache fetches the identity provider's public signing keys and caches
// them by kid. It is a best-effort TTL cache: simultaneous misses may fetch
// the document twice, which is fine (idempotent reads), so we deliberately
// don't serialize population behind a lock.
type KeyCache struct {
	jwksURI string
	ttl     time.Duration
	http    *http.Client

	mu   sync.RWMutex
	doc  *cachedJWKS
	keys map[string]*cachedKey // kid -> converted public key
}

type cachedJWKS struct {
	jwks      jwtx.JWKS
	expiresAt time.Time
}

type cachedKey struct {
	pub       *rsa.PublicKey
	expiresAt time.Time
}

// NewKeyCache builds a KeyCache with the default 1 hour TTL.
func NewKeyCache(jwksURI string, hc *http.Client) *KeyCache {
	if hc == nil {
		hc = newHTTPClient()
	}
	return &KeyCache{
		jwksURI: jwksURI,
		ttl:     DefaultKeyTTL,
		http:    hc,
		keys:    make(map[string]*cachedKey),
	}
}

// SetTTL overrides the cache TTL. Mainly for tests.
func (k *KeyCache) SetTTL(ttl time.Duration) { k.ttl = ttl }

// GetKeyByKid returns the provider public key for the given kid, fetching
// and converting the JWKS as needed. A kid absent from a freshly fetched
// key set yields ErrorCodeUnknownKID; a key set without a `keys` array is
// a fatal protocol error (ErrorCodeJWKSInvalid), not a miss.
func (k *KeyCache) GetKeyByKid(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := time.Now()

	// Fast path: converted key already cached for this kid.
	k.mu.RLock()
	if ck, ok := k.keys[kid]; ok && now.Before(ck.expiresAt) {
		k.mu.RUnlock()
		return ck.pub, nil
	}
	k.mu.RUnlock()

	jwks, err := k.keySet(ctx, now)
	if err != nil {
		return nil, err
	}

	jwk, found := findKid(jwks, kid)
	if !found {
		return nil, newError(ErrorCodeUnknownKID, "no matching key found for kid", http.StatusUnauthorized)
	}

	pub, err := jwk.PublicKey()
	if err != nil {
		if errors.Is(err, jwtx.ErrInvalidKeyMaterial) {
			return nil, newError(ErrorCodeInvalidJWK,
				"JWK is missing required parameters for conversion", http.StatusInternalServerError)
		}
		return nil, err
	}

	k.mu.Lock()
	k.keys[kid] = &cachedKey{pub: pub, expiresAt: now.Add(k.ttl)}
	k.mu.Unlock()

	return pub, nil
}

// keySet returns the cached JWKS document, refetching on miss or expiry.
func (k *KeyCache) keySet(ctx context.Context, now time.Time) (jwtx.JWKS, error) {
	k.mu.RLock()
	doc := k.doc
	k.mu.RUnlock()

	if doc != nil && now.Before(doc.expiresAt) {
		return doc.jwks, nil
	}

	jwks, err := k.fetch(ctx)
	if err != nil {
		return jwtx.JWKS{}, err
	}

	k.mu.Lock()
	k.doc = &cachedJWKS{jwks: jwks, expiresAt: now.Add(k.ttl)}
	k.mu.Unlock()

	return jwks, nil
}

func (k *KeyCache) fetch(ctx context.Context) (jwtx.JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.jwksURI, nil)
	if err != nil {
		return jwtx.JWKS{}, newError(ErrorCodeJWKSUnavailable,
			fmt.Sprintf("failed to build JWKS request: %v", err), http.StatusInternalServerError)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.http.Do(req)
	if err != nil {
		return jwtx.JWKS{}, newError(ErrorCodeJWKSUnavailable,
			"failed to fetch JWKS endpoint", http.StatusInternalServerError)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jwtx.JWKS{}, newError(ErrorCodeJWKSUnavailable,
			fmt.Sprintf("JWKS endpoint returned HTTP %d", resp.StatusCode), http.StatusInternalServerError)
	}

	// Decode loosely first: a response without a `keys` array is broken
	// upstream metadata and must not be treated as an empty set.
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return jwtx.JWKS{}, newError(ErrorCodeJWKSInvalid,
			"JWKS endpoint returned invalid data", http.StatusInternalServerError)
	}
	keysRaw, ok := raw["keys"]
	if !ok {
		return jwtx.JWKS{}, newError(ErrorCodeJWKSInvalid,
			"JWKS endpoint returned invalid data", http.StatusInternalServerError)
	}

	var keys []jwtx.JWK
	if err := json.Unmarshal(keysRaw, &keys); err != nil {
		return jwtx.JWKS{}, newError(ErrorCodeJWKSInvalid,
			"JWKS endpoint returned invalid data", http.StatusInternalServerError)
	}

	return jwtx.JWKS{Keys: keys}, nil
}

func findKid(jwks jwtx.JWKS, kid string) (jwtx.JWK, bool) {
	for _, key := range jwks.Keys {
		if key.Kid == kid {
			return key, true
		}
	}
	return jwtx.JWK{}, false
}
