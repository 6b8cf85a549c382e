package query

import "context"

// MutateOption tunes one Mutate call.
type MutateOption func(*mutateConfig)

type mutateConfig struct {
	invalidates []Key
	updates     []Key
}

// Invalidates removes every entry under each prefix after a successful mutation.
func Invalidates(prefixes ...Key) MutateOption {
	return func(m *mutateConfig) { m.invalidates = append(m.invalidates, prefixes...) }
}

// Updates stores the mutation result under key after a successful mutation.
func Updates(key Key) MutateOption {
	return func(m *mutateConfig) { m.updates = append(m.updates, key) }
}

// Mutate runs a write exactly once. Writes are never retried: a failure is
// returned to the caller as is. On success the configured keys are
// invalidated or updated.
func Mutate[T any](ctx context.Context, c *Cache, fn func(context.Context) (T, error), opts ...MutateOption) (T, error) {
	var cfg mutateConfig
	for _, o := range opts {
		o(&cfg)
	}

	v, err := fn(ctx)
	c.metrics.RecordMutation(err)
	if err != nil {
		return v, err
	}
	for _, k := range cfg.invalidates {
		c.Invalidate(k)
	}
	for _, k := range cfg.updates {
		c.SetData(k, v)
	}
	return v, nil
}
