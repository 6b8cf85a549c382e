package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	learnhub "github.com/chimerakang/learnhub-go"
)

// DefaultRedisKey is the key the token is stored under.
const DefaultRedisKey = "learnhub:" + CookieName

// Redis keeps the token in Redis with the store TTL as key expiry.
type Redis struct {
	client redis.Cmdable
	key    string
	opts   options
}

// NewRedis creates a store on an existing client. An empty key selects
// DefaultRedisKey.
func NewRedis(client redis.Cmdable, key string, opts ...Option) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key, opts: buildOptions(opts)}
}

// DialRedis connects to addr and verifies the connection with a ping.
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tokenstore: redis %s: %w", addr, err)
	}
	return client, nil
}

// Load returns the stored token, or learnhub.ErrNoToken when the key is
// absent or holds an expired JWT.
func (r *Redis) Load(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", learnhub.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: redis get: %w", err)
	}
	if err := checkExpiry(token, r.opts.now()); err != nil {
		if delErr := r.client.Del(ctx, r.key).Err(); delErr != nil {
			return "", fmt.Errorf("tokenstore: redis del: %w", delErr)
		}
		return "", learnhub.ErrNoToken
	}
	return token, nil
}

// Save stores the token with the configured TTL.
func (r *Redis) Save(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, r.opts.ttl).Err(); err != nil {
		return fmt.Errorf("tokenstore: redis set: %w", err)
	}
	return nil
}

// Delete removes the key.
func (r *Redis) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("tokenstore: redis del: %w", err)
	}
	return nil
}
