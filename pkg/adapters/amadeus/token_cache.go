package amadeus

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultExpirySkew is subtracted from a token's lifetime so it is refreshed before it lapses.
const DefaultExpirySkew = 60 * time.Second

// TokenFetcher performs the actual exchange behind a CachedTokenSource.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (Token, error)
	Fingerprint() string
}

// CachedTokenSource keeps one token per credential fingerprint until shortly
// before it expires. Concurrent misses share a single exchange.
type CachedTokenSource struct {
	fetcher TokenFetcher
	key     string
	skew    time.Duration
	cache   *ttlcache.Cache[string, string]
	group   singleflight.Group
}

// CacheOption configures a CachedTokenSource.
type CacheOption func(*CachedTokenSource)

// WithExpirySkew overrides DefaultExpirySkew.
func WithExpirySkew(d time.Duration) CacheOption {
	return func(s *CachedTokenSource) {
		s.skew = d
	}
}

// NewCachedTokenSource wraps fetcher with an expiring cache.
func NewCachedTokenSource(fetcher TokenFetcher, opts ...CacheOption) *CachedTokenSource {
	s := &CachedTokenSource{
		fetcher: fetcher,
		key:     fetcher.Fingerprint(),
		skew:    DefaultExpirySkew,
		cache: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns the cached token or exchanges credentials for a new one.
// The shared exchange outlives any single caller: a cancelled caller returns
// its context error while the others keep waiting for the result.
func (s *CachedTokenSource) Token(ctx context.Context) (string, error) {
	if item := s.cache.Get(s.key); item != nil {
		return item.Value(), nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.key, func() (any, error) {
		if item := s.cache.Get(s.key); item != nil {
			return item.Value(), nil
		}
		tok, err := s.fetcher.FetchToken(fetchCtx)
		if err != nil {
			return "", err
		}
		if ttl := s.ttl(tok.ExpiresIn); ttl > 0 {
			s.cache.Set(s.key, tok.AccessToken, ttl)
		}
		return tok.AccessToken, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate drops the cached token.
func (s *CachedTokenSource) Invalidate() {
	s.cache.Delete(s.key)
}

// ttl returns how long a token with the given lifetime may be served.
// Tokens without a lifetime are not cached.
func (s *CachedTokenSource) ttl(expiresIn time.Duration) time.Duration {
	if expiresIn <= 0 {
		return 0
	}
	if ttl := expiresIn - s.skew; ttl > 0 {
		return ttl
	}
	return expiresIn / 2
}
