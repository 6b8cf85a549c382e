// Package learnhub provides a Go SDK for the LearnHub e-learning backend.
//
// The SDK defines interfaces for the authentication session, the course
// catalogue and the learner's account. Concrete implementations are
// injected via Option functions:
//
//	client, err := learnhub.NewClient(
//	    learnhub.Config{BaseURL: "http://localhost:3001"},
//	    learnhub.WithSessionManager(manager),
//	    learnhub.WithCourseService(courses),
//	    learnhub.WithUserService(users),
//	)
//
// Package fake wires every service against an in-memory backend for tests.
package learnhub

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client is the main entry point for LearnHub operations.
type Client struct {
	config  Config
	logger  *zap.Logger
	session SessionManager
	courses CourseService
	users   UserService
	closers []io.Closer
}

// Config holds connection and behavior configuration.
type Config struct {
	// BaseURL is the backend address, e.g. "http://localhost:3001".
	BaseURL string

	// AuthURL is where the /auth endpoints are served. Default: BaseURL.
	AuthURL string

	// RequestTimeout bounds every backend request. Default: 30 seconds.
	RequestTimeout time.Duration

	// TokenTTL is how long a persisted session token is kept; pass it to
	// the token store. Default: 7 days.
	TokenTTL time.Duration
}

// Defaults applied by NewClient.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultTokenTTL       = 7 * 24 * time.Hour
)

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSessionManager sets the session manager.
func WithSessionManager(s SessionManager) Option {
	return func(c *Client) { c.session = s }
}

// WithCourseService sets the course service implementation.
func WithCourseService(s CourseService) Option {
	return func(c *Client) { c.courses = s }
}

// WithUserService sets the user service implementation.
func WithUserService(s UserService) Option {
	return func(c *Client) { c.users = s }
}

// WithCloser registers a resource released by Close, in registration order.
func WithCloser(cl io.Closer) Option {
	return func(c *Client) { c.closers = append(c.closers, cl) }
}

// NewClient creates a new client with the given configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("learnhub: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("learnhub: invalid BaseURL %q", cfg.BaseURL)
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = cfg.BaseURL
	}
	if u, err := url.Parse(cfg.AuthURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("learnhub: invalid AuthURL %q", cfg.AuthURL)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	c := &Client{config: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.config }

// Logger returns the client logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// Session returns the session manager, or nil if not configured.
func (c *Client) Session() SessionManager { return c.session }

// Courses returns the course service, or nil if not configured.
func (c *Client) Courses() CourseService { return c.courses }

// Users returns the user service, or nil if not configured.
func (c *Client) Users() UserService { return c.users }

// Context returns ctx annotated with the current user, when one is signed in.
func (c *Client) Context(ctx context.Context) context.Context {
	if c.session == nil {
		return ctx
	}
	return WithUser(ctx, c.session.CurrentUser())
}

// Close releases all resources held by the client. Injected services
// implementing io.Closer are closed first, then registered closers in
// reverse registration order, so a resource outlives everything
// registered after it.
func (c *Client) Close() error {
	var closers []io.Closer
	for _, svc := range []any{c.session, c.courses, c.users} {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			closers = append(closers, cl)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		closers = append(closers, c.closers[i])
	}
	var firstErr error
	for _, cl := range closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = c.logger.Sync()
	return firstErr
}
