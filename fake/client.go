package fake

import (
	"time"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/auth"
	"github.com/chimerakang/learnhub-go/course"
	"github.com/chimerakang/learnhub-go/query"
	"github.com/chimerakang/learnhub-go/session"
	"github.com/chimerakang/learnhub-go/tokenstore"
	"github.com/chimerakang/learnhub-go/transport"
	"github.com/chimerakang/learnhub-go/user"
)

// Client is a *learnhub.Client wired to a fake backend, with the pieces
// tests usually want to inspect.
type Client struct {
	*learnhub.Client

	Server   *Server
	Manager  *session.Manager
	Store    *tokenstore.Memory
	Cache    *query.Cache
	Recorder *Recorder
}

// NewClient starts a fake backend and creates a client with every service
// wired to it. The session is not initialized. Close the client when done;
// this also stops the backend.
func NewClient(opts ...Option) *Client {
	cfg := newConfig(opts)
	srv := newServer(cfg)

	store := tokenstore.NewMemory()
	tc, err := transport.New(srv.URL,
		transport.WithTokenStore(store),
		transport.WithTimeout(5*time.Second),
		transport.WithUserAgent("learnhub-fake"),
	)
	if err != nil {
		srv.Close()
		panic(err)
	}
	cache := query.New(query.WithPolicy(cfg.policy))
	rec := &Recorder{}
	mgr := session.New(auth.New(auth.NewHTTPBackend(tc)), store,
		session.WithNotifier(rec),
		session.WithNavigator(rec),
		session.WithCache(cache),
	)

	c, err := learnhub.NewClient(
		learnhub.Config{BaseURL: srv.URL},
		learnhub.WithSessionManager(mgr),
		learnhub.WithCourseService(course.New(course.NewHTTPBackend(tc), cache)),
		learnhub.WithUserService(user.New(user.NewHTTPBackend(tc), cache)),
		learnhub.WithCloser(closerFunc(srv.Close)),
		learnhub.WithCloser(cache),
	)
	if err != nil {
		srv.Close()
		panic(err)
	}
	return &Client{Client: c, Server: srv, Manager: mgr, Store: store, Cache: cache, Recorder: rec}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
