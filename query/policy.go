// Package query is the cache policy layer for server-fetched resources:
// structured keys, a stale-while-revalidate cache with a retention window,
// a retry policy for reads and single-attempt mutations.
package query

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	learnhub "github.com/chimerakang/learnhub-go"
)

// Default policy values.
const (
	DefaultStaleTime     = 5 * time.Minute
	DefaultCacheTime     = 10 * time.Minute
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// Policy controls freshness, retention and retries of cached reads.
type Policy struct {
	// StaleTime is how long a fetched value is fresh.
	StaleTime time.Duration
	// CacheTime evicts a value unused for this long, fresh or not.
	CacheTime time.Duration
	// RefetchOnFocus refreshes stale values when Focus is called.
	RefetchOnFocus bool
	// StaleWhileRevalidate serves stale values immediately and refreshes
	// them in the background. When false a stale read waits for a refetch.
	StaleWhileRevalidate bool
	// MaxAttempts bounds the attempts of one read, the first included.
	MaxAttempts int
	// RetryDelay is the first back-off interval; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// ShouldRetry decides whether a failed read is attempted again.
	ShouldRetry func(err error) bool
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:            DefaultStaleTime,
		CacheTime:            DefaultCacheTime,
		RefetchOnFocus:       false,
		StaleWhileRevalidate: true,
		MaxAttempts:          DefaultMaxAttempts,
		RetryDelay:           DefaultRetryDelay,
		MaxRetryDelay:        DefaultMaxRetryDelay,
		ShouldRetry:          learnhub.IsRetryable,
	}
}

func (p Policy) normalize() Policy {
	d := DefaultPolicy()
	if p.StaleTime < 0 {
		p.StaleTime = 0
	}
	if p.CacheTime <= 0 {
		p.CacheTime = d.CacheTime
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = d.RetryDelay
	}
	if p.MaxRetryDelay < p.RetryDelay {
		p.MaxRetryDelay = p.RetryDelay
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = d.ShouldRetry
	}
	return p
}

// retry runs fn until it succeeds, returns a non-retryable error, the
// attempt ceiling is reached or ctx is done. onAttempt observes every attempt.
func (p Policy) retry(ctx context.Context, fn func(context.Context) (any, error), onAttempt func(error)) (any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.RetryDelay
	b.MaxInterval = p.MaxRetryDelay
	b.MaxElapsedTime = 0

	var v any
	err := backoff.Retry(func() error {
		var err error
		v, err = fn(ctx)
		onAttempt(err)
		if err != nil && (ctx.Err() != nil || !p.ShouldRetry(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return v, nil
}
