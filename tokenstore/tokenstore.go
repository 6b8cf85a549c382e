// Package tokenstore persists the session token between process runs.
//
// Three implementations of learnhub.TokenStore are provided: Memory for
// tests and short-lived processes, File which keeps the token as a
// Secure, SameSite=Strict cookie line on disk, and Redis for shared
// deployments. Every store keeps a token for DefaultTTL unless configured
// otherwise and reports learnhub.ErrNoToken once it has lapsed.
package tokenstore

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	learnhub "github.com/chimerakang/learnhub-go"
)

// CookieName is the name the token is persisted under.
const CookieName = "auth-token"

// DefaultTTL is how long a saved token is kept.
const DefaultTTL = learnhub.DefaultTokenTTL

var errExpired = errors.New("tokenstore: token expired")

type options struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a store.
type Option func(*options)

// WithTTL sets how long a saved token is kept.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithClock sets the clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now, logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// checkExpiry rejects a token that is a JWT whose exp claim has passed.
// Opaque tokens carry no expiry of their own and are accepted.
func checkExpiry(raw string, now time.Time) error {
	if strings.Count(raw, ".") != 2 {
		return nil
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(now) {
		return errExpired
	}
	return nil
}
