package tokenstore

import (
	"context"
	"sync"
	"time"

	learnhub "github.com/chimerakang/learnhub-go"
)

// Memory keeps the token in process memory.
type Memory struct {
	opts options

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...Option) *Memory {
	return &Memory{opts: buildOptions(opts)}
}

// Load returns the saved token, or learnhub.ErrNoToken when none is saved
// or it has lapsed.
func (m *Memory) Load(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return "", learnhub.ErrNoToken
	}
	now := m.opts.now()
	if !now.Before(m.expiresAt) || checkExpiry(m.token, now) != nil {
		m.token = ""
		return "", learnhub.ErrNoToken
	}
	return m.token, nil
}

// Save replaces the token.
func (m *Memory) Save(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	m.expiresAt = m.opts.now().Add(m.opts.ttl)
	return nil
}

// Delete forgets the token.
func (m *Memory) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	return nil
}
