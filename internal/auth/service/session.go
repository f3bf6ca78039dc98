package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/store"
)

// DefaultLoginSessionTTL bounds how long a login attempt may sit between
// redirect-out and callback before its state and nonce lapse.
const DefaultLoginSessionTTL = time.Hour

// BoundSession scopes the durable session-value store to one browser
// session id, giving the login flow its per-visitor state/nonce storage.
// Missing keys read as empty rather than erroring; the flow treats an
// empty value as a failed check anyway.
type BoundSession struct {
	Store store.Store
	SID   string
	TTL   time.Duration
}

func (b *BoundSession) Get(ctx context.Context, key string) (string, error) {
	v, err := b.Store.Sessions().GetSessionValue(ctx, b.SID, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (b *BoundSession) Put(ctx context.Context, key, value string) error {
	ttl := b.TTL
	if ttl <= 0 {
		ttl = DefaultLoginSessionTTL
	}
	return b.Store.Sessions().PutSessionValue(ctx, b.SID, key, value, time.Now().Add(ttl))
}

func (b *BoundSession) Pull(ctx context.Context, key string) (string, error) {
	v, err := b.Store.Sessions().PullSessionValue(ctx, b.SID, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}
