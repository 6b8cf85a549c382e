package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/audit"
	"github.com/chimerakang/learnhub-go/auth"
	"github.com/chimerakang/learnhub-go/config"
	"github.com/chimerakang/learnhub-go/course"
	"github.com/chimerakang/learnhub-go/logging"
	"github.com/chimerakang/learnhub-go/metrics"
	"github.com/chimerakang/learnhub-go/query"
	"github.com/chimerakang/learnhub-go/session"
	"github.com/chimerakang/learnhub-go/tokenstore"
	"github.com/chimerakang/learnhub-go/transport"
	"github.com/chimerakang/learnhub-go/user"
)

// errNotSignedIn is returned by commands that need a session.
var errNotSignedIn = errors.New("not signed in, run `learnhub login` first")

// app is everything one command invocation needs.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	client   *learnhub.Client
	manager  *session.Manager
	cache    *query.Cache
	users    *user.Service
}

// newApp wires the client from configuration and restores the persisted
// session.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	var closers []io.Closer
	fail := func(err error) (*app, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		_ = logger.Sync()
		return nil, err
	}

	store, storeCloser, err := openTokenStore(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	if storeCloser != nil {
		closers = append(closers, storeCloser)
	}

	m := metrics.New(cfg.MetricsEnabled, a.registry)
	auditLog := audit.New(64, audit.WithZapHandler(logger))
	closers = append(closers, auditLog)

	newTransport := func(baseURL string) (*transport.Client, error) {
		return transport.New(baseURL,
			transport.WithTokenStore(store),
			transport.WithTimeout(cfg.RequestTimeout),
			transport.WithLogger(logger.Named("transport")),
			transport.WithMetrics(m),
			transport.WithUserAgent("learnhub-cli"),
		)
	}
	tc, err := newTransport(cfg.BackendURL)
	if err != nil {
		return fail(err)
	}
	authTC := tc
	if cfg.AuthURL != cfg.BackendURL {
		if authTC, err = newTransport(cfg.AuthURL); err != nil {
			return fail(err)
		}
	}

	a.cache = query.New(query.WithLogger(logger.Named("query")), query.WithMetrics(m))
	closers = append(closers, a.cache)

	a.manager = session.New(auth.New(auth.NewHTTPBackend(authTC)), store,
		session.WithNotifier(logging.NewNotifier(logger)),
		session.WithNavigator(navigator{logger: logger}),
		session.WithLogger(logger.Named("session")),
		session.WithMetrics(m),
		session.WithAudit(auditLog),
		session.WithCache(a.cache),
	)

	a.users = user.New(user.NewHTTPBackend(tc), a.cache)
	opts := []learnhub.Option{
		learnhub.WithLogger(logger),
		learnhub.WithSessionManager(a.manager),
		learnhub.WithCourseService(course.New(course.NewHTTPBackend(tc), a.cache)),
		learnhub.WithUserService(a.users),
	}
	for _, cl := range closers {
		opts = append(opts, learnhub.WithCloser(cl))
	}
	a.client, err = learnhub.NewClient(learnhub.Config{
		BaseURL:        cfg.BackendURL,
		AuthURL:        cfg.AuthURL,
		RequestTimeout: cfg.RequestTimeout,
		TokenTTL:       cfg.TokenTTL,
	}, opts...)
	if err != nil {
		return fail(err)
	}

	if err := a.manager.Initialize(ctx); err != nil {
		// A rejected token is already discarded; the command runs anonymous.
		logger.Debug("session not restored", zap.Error(err))
	}
	return a, nil
}

// openTokenStore returns the configured store and, for Redis, the
// connection to close.
func openTokenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (learnhub.TokenStore, io.Closer, error) {
	opts := []tokenstore.Option{
		tokenstore.WithTTL(cfg.TokenTTL),
		tokenstore.WithLogger(logger.Named("tokenstore")),
	}
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return tokenstore.NewMemory(opts...), nil, nil
	case config.TokenStoreRedis:
		rc, err := tokenstore.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return tokenstore.NewRedis(rc, "", opts...), rc, nil
	default:
		var fileOpts []tokenstore.FileOption
		if cfg.AuthSecret != "" {
			fileOpts = append(fileOpts, tokenstore.WithSigningKey([]byte(cfg.AuthSecret)))
		}
		f, err := tokenstore.NewFile(cfg.TokenFile, fileOpts, opts...)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	}
}

// ctx annotates ctx with the signed-in user.
func (a *app) ctx(ctx context.Context) context.Context { return a.client.Context(ctx) }

func (a *app) requireUser() (*learnhub.User, error) {
	u := a.manager.CurrentUser()
	if u == nil {
		return nil, errNotSignedIn
	}
	return u, nil
}

// Close releases every resource and flushes the logger.
func (a *app) Close() error {
	err := a.client.Close()
	if a.cfg.MetricsEnabled {
		a.logMetrics()
	}
	_ = a.logger.Sync()
	return err
}

func (a *app) logMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Debug("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		a.logger.Debug("metric", zap.String("name", mf.GetName()), zap.Int("series", len(mf.GetMetric())))
	}
}

// navigator reports session route changes. A terminal has no routes; the
// landing route is logged for scripts that follow the session flow.
type navigator struct {
	logger *zap.Logger
}

func (n navigator) Navigate(route string) {
	n.logger.Debug("navigate", zap.String("route", route))
}
