package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/faceoff/pkg/metrics"
)

// DefaultSkew refreshes tokens this long before they actually expire.
const DefaultSkew = time.Minute

// refreshTimeout bounds a shared refresh, which outlives the caller that began it.
const refreshTimeout = 30 * time.Second

// Token is an access token plus its lifetime as issued.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// TokenFetcher obtains a fresh app token.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (Token, error)
}

// TokenSource hands out a currently valid app token.
type TokenSource interface {
	GetOrRefresh(ctx context.Context, now time.Time) (string, error)
}

// TokenCache caches one app token and refreshes it through a TokenFetcher.
// Concurrent callers that find the token stale share a single refresh.
type TokenCache struct {
	fetcher TokenFetcher
	skew    time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	inflight  *refresh
}

type refresh struct {
	done  chan struct{}
	token string
	err   error
}

// NewTokenCache creates an empty cache. A negative skew is treated as zero.
func NewTokenCache(fetcher TokenFetcher, skew time.Duration) *TokenCache {
	if skew < 0 {
		skew = 0
	}
	return &TokenCache{fetcher: fetcher, skew: skew}
}

// GetOrRefresh returns the cached token while now is before expiresAt-skew,
// otherwise it fetches a new one.
func (c *TokenCache) GetOrRefresh(ctx context.Context, now time.Time) (string, error) {
	c.mu.Lock()
	if c.token != "" && now.Before(c.expiresAt.Add(-c.skew)) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	if r := c.inflight; r != nil {
		c.mu.Unlock()
		select {
		case <-r.done:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r := &refresh{done: make(chan struct{})}
	c.inflight = r
	c.mu.Unlock()

	go c.refresh(context.WithoutCancel(ctx), r, now)

	select {
	case <-r.done:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh fetches a token for every caller waiting on r. It does not stop
// when the caller that started it gives up.
func (c *TokenCache) refresh(ctx context.Context, r *refresh, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	tok, err := c.fetcher.FetchToken(ctx)
	if err == nil && tok.AccessToken == "" {
		err = fmt.Errorf("%w: token endpoint returned no access_token", ErrUpstream)
	}

	c.mu.Lock()
	if err == nil {
		c.token = tok.AccessToken
		c.expiresAt = now.Add(tok.ExpiresIn)
		r.token = tok.AccessToken
		metrics.RecordTokenRefresh()
	} else {
		r.err = err
	}
	c.inflight = nil
	c.mu.Unlock()
	close(r.done)
}

// ExpiresAt reports when the cached token expires; zero when empty.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}
