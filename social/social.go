// Package social runs a third-party sign-in from a terminal: an OAuth2
// authorization-code flow with PKCE whose redirect lands on a loopback
// listener. The provider tokens are returned as a SocialAuthRequest for
// the session's LoginWithSocial.
package social

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cli/browser"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/config"
)

// CallbackPath is the loopback path the provider redirects to.
const CallbackPath = "/callback"

// DefaultTimeout bounds how long Run waits for the provider callback.
const DefaultTimeout = 5 * time.Minute

// Flow signs a user in with one OAuth2 provider.
type Flow struct {
	provider   string
	oauth      oauth2.Config
	listenAddr string
	timeout    time.Duration
	httpClient *http.Client
	open       func(url string) error
	logger     *zap.Logger
}

// Option configures the Flow.
type Option func(*Flow)

// WithListenAddr sets the loopback address. The default picks a free port.
func WithListenAddr(addr string) Option {
	return func(f *Flow) { f.listenAddr = addr }
}

// WithTimeout bounds how long Run waits for the callback.
func WithTimeout(d time.Duration) Option {
	return func(f *Flow) { f.timeout = d }
}

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Flow) { f.httpClient = hc }
}

// WithOpener replaces the browser launcher. It receives the authorization URL.
func WithOpener(open func(url string) error) Option {
	return func(f *Flow) { f.open = open }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// New creates a Flow for provider. RedirectURL in cfg is ignored; it is set
// to the loopback listener on every Run.
func New(provider string, cfg oauth2.Config, opts ...Option) *Flow {
	f := &Flow{
		provider:   provider,
		oauth:      cfg,
		listenAddr: "127.0.0.1:0",
		timeout:    DefaultTimeout,
		open:       browser.OpenURL,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// FromConfig creates a Flow from the social settings.
func FromConfig(c config.Social, opts ...Option) (*Flow, error) {
	if !c.Enabled() {
		return nil, errors.New("social: LEARNHUB_SOCIAL_CLIENT_ID, LEARNHUB_SOCIAL_AUTH_URL and LEARNHUB_SOCIAL_TOKEN_URL are required")
	}
	return New(c.Provider, oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{AuthURL: c.AuthURL, TokenURL: c.TokenURL},
		Scopes:       c.Scopes,
	}, opts...), nil
}

// Provider returns the provider name sent to the backend.
func (f *Flow) Provider() string { return f.provider }

type callback struct {
	code string
	err  error
}

// Run opens the provider's consent page, waits for the redirect and
// exchanges the code. The returned request is ready for LoginWithSocial.
func (f *Flow) Run(ctx context.Context) (learnhub.SocialAuthRequest, error) {
	li, err := net.Listen("tcp", f.listenAddr)
	if err != nil {
		return learnhub.SocialAuthRequest{}, fmt.Errorf("social: start listener: %w", err)
	}
	defer func() { _ = li.Close() }()

	cfg := f.oauth
	cfg.RedirectURL = "http://" + li.Addr().String() + CallbackPath
	state := rand.Text()
	verifier := oauth2.GenerateVerifier()
	authURL := cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	results := make(chan callback, 1)
	var code string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return f.serve(egCtx, li, f.handler(state, results))
	})
	eg.Go(func() error {
		f.logger.Info("opening browser for social sign-in", zap.String("provider", f.provider))
		if err := f.open(authURL); err != nil {
			return fmt.Errorf("social: open browser: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		select {
		case cb := <-results:
			if cb.err != nil {
				return cb.err
			}
			code = cb.code
			return errDone
		case <-egCtx.Done():
			return fmt.Errorf("social: waiting for callback: %w", egCtx.Err())
		}
	})
	if err := eg.Wait(); !errors.Is(err, errDone) {
		return learnhub.SocialAuthRequest{}, err
	}

	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return learnhub.SocialAuthRequest{}, fmt.Errorf("social: exchange code: %w", err)
	}
	req := learnhub.SocialAuthRequest{Provider: f.provider, AccessToken: tok.AccessToken}
	if id, ok := tok.Extra("id_token").(string); ok {
		req.IDToken = id
	}
	f.logger.Debug("social sign-in completed", zap.String("provider", f.provider))
	return req, nil
}

// errDone stops the errgroup once the callback arrived.
var errDone = errors.New("social: callback received")

func (f *Flow) serve(ctx context.Context, li net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(li); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("social: serve callback: %w", err)
	}
	return nil
}

// handler accepts the first callback carrying the expected state and
// reports it on results.
func (f *Flow) handler(state string, results chan<- callback) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	var once sync.Once
	deliver := func(cb callback) { once.Do(func() { results <- cb }) }

	r.GET(CallbackPath, func(c *gin.Context) {
		if c.Query("state") != state {
			c.String(http.StatusBadRequest, "invalid state")
			return
		}
		if e := c.Query("error"); e != "" {
			c.String(http.StatusOK, "sign-in was not completed, you may close this page")
			deliver(callback{err: fmt.Errorf("social: provider returned %s: %s", e, c.Query("error_description"))})
			return
		}
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "missing code")
			return
		}
		c.String(http.StatusOK, "login complete, you may close this page")
		deliver(callback{code: code})
	})
	return r
}
