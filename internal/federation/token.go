// Package federation performs cross-node document retrieval: resolving a
// catalog pointer to a peripheral node, authenticating the node-to-node call
// and streaming the document bytes back.
package federation

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// TokenSource yields the bearer credential presented to peripheral nodes.
// Isolated behind an interface so the self-issued HMAC token can be swapped
// for an identity-provider-issued one without touching call sites.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc is a function adapter for TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

const tokenCacheKey = "service-token"

// HMACTokenSource mints short-lived self-issued HS256 tokens for
// node-to-node calls. Tokens are not tied to any end-user session: the
// subject is always the service itself. Minted tokens are cached and reused
// until shortly before expiry.
type HMACTokenSource struct {
	key    []byte
	issuer string
	ttl    time.Duration
	cache  *ttlcache.Cache[string, string]
}

func NewHMACTokenSource(key []byte, issuer string, ttl time.Duration) *HMACTokenSource {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HMACTokenSource{
		key:    key,
		issuer: issuer,
		ttl:    ttl,
		// Touch-on-hit would keep extending a token past its real expiry.
		cache: ttlcache.New[string, string](
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (s *HMACTokenSource) Token(_ context.Context) (string, error) {
	if item := s.cache.Get(tokenCacheKey); item != nil {
		return item.Value(), nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   "service",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}

	// Cache for most of the lifetime so a reused token always reaches the
	// peer with validity to spare.
	s.cache.Set(tokenCacheKey, token, s.ttl-s.ttl/10)
	return token, nil
}
