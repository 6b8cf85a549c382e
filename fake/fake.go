// Package fake provides an in-memory LearnHub backend for testing.
//
// The backend is a gin router served over httptest, so the whole SDK stack
// (transport, cache, services, session) runs unmodified against it. Use
// fake.NewClient() in tests to get a fully wired client, or NewServer()
// to point your own wiring at the backend.
package fake

import (
	"fmt"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/query"
)

// Option configures the fake backend and client.
type Option func(*config)

type config struct {
	seed   []func(*state)
	policy query.Policy
}

type account struct {
	user     learnhub.User
	password string
	bio      string
	phone    string
}

type fault struct {
	status    int
	message   string
	remaining int // < 0 means every request
}

type state struct {
	mu           sync.RWMutex
	accounts     map[int64]*account                // userID → account
	emails       map[string]int64                  // email → userID
	tokens       map[string]int64                  // token → userID
	socials      map[string]int64                  // provider:accessToken → userID
	otps         map[string]string                 // email → code
	resets       map[string]int64                  // reset token → userID
	courses      map[int64]*learnhub.Course        // courseID → Course
	courseOrder  []int64                           // insertion order
	sessions     map[int64]*learnhub.CourseSession // sessionID → session
	contents     map[int64][]learnhub.CourseContent
	enrollments  map[int64][]learnhub.Enrollment  // userID → enrollments
	favorites    map[int64]map[int64]bool         // userID → courseID
	completed    map[int64]map[int64]time.Time    // userID → contentID → completion
	certificates map[int64][]learnhub.Certificate // userID → certificates
	issue        func(userID int64) string
	nextID       int64
	seq          int

	faults map[string]*fault
	hits   map[string]int
}

// WithUser adds an account that can sign in with password.
func WithUser(u learnhub.User, password string) Option {
	return seed(func(s *state) {
		s.accounts[u.ID] = &account{user: u, password: password}
		s.emails[u.Email] = u.ID
		s.bump(u.ID)
	})
}

// WithToken pre-issues a session token for a user.
func WithToken(token string, userID int64) Option {
	return seed(func(s *state) { s.tokens[token] = userID })
}

// WithSocialIdentity links a provider access token to a user.
func WithSocialIdentity(provider, accessToken string, userID int64) Option {
	return seed(func(s *state) { s.socials[provider+":"+accessToken] = userID })
}

// WithOTP sets the passcode expected for email.
func WithOTP(email, code string) Option {
	return seed(func(s *state) { s.otps[email] = code })
}

// WithResetToken registers a password reset token for a user.
func WithResetToken(token string, userID int64) Option {
	return seed(func(s *state) { s.resets[token] = userID })
}

// WithCourse adds a catalogue entry.
func WithCourse(c learnhub.Course) Option {
	return seed(func(s *state) {
		cc := c
		s.courses[c.ID] = &cc
		s.courseOrder = append(s.courseOrder, c.ID)
		s.bump(c.ID)
	})
}

// WithSession adds a scheduled session to its course.
func WithSession(cs learnhub.CourseSession) Option {
	return seed(func(s *state) {
		v := cs
		s.sessions[cs.ID] = &v
		s.bump(cs.ID)
	})
}

// WithContent adds a module to its course.
func WithContent(c learnhub.CourseContent) Option {
	return seed(func(s *state) {
		s.contents[c.CourseID] = append(s.contents[c.CourseID], c)
		s.bump(c.ID)
	})
}

// WithCertificate issues a certificate to a user.
func WithCertificate(userID int64, c learnhub.Certificate) Option {
	return seed(func(s *state) {
		s.certificates[userID] = append(s.certificates[userID], c)
		s.bump(c.ID)
	})
}

// WithTokenIssuer sets how session tokens are minted.
func WithTokenIssuer(fn func(userID int64) string) Option {
	return seed(func(s *state) { s.issue = fn })
}

// WithPolicy sets the cache policy of the client built by NewClient. The
// default is query.DefaultPolicy with millisecond retry delays.
func WithPolicy(p query.Policy) Option {
	return func(c *config) { c.policy = p }
}

func seed(fn func(*state)) Option {
	return func(c *config) { c.seed = append(c.seed, fn) }
}

func newConfig(opts []Option) *config {
	p := query.DefaultPolicy()
	p.RetryDelay = time.Millisecond
	p.MaxRetryDelay = 5 * time.Millisecond
	c := &config{policy: p}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newState(cfg *config) *state {
	s := &state{
		accounts:     make(map[int64]*account),
		emails:       make(map[string]int64),
		tokens:       make(map[string]int64),
		socials:      make(map[string]int64),
		otps:         make(map[string]string),
		resets:       make(map[string]int64),
		courses:      make(map[int64]*learnhub.Course),
		sessions:     make(map[int64]*learnhub.CourseSession),
		contents:     make(map[int64][]learnhub.CourseContent),
		enrollments:  make(map[int64][]learnhub.Enrollment),
		favorites:    make(map[int64]map[int64]bool),
		completed:    make(map[int64]map[int64]time.Time),
		certificates: make(map[int64][]learnhub.Certificate),
		faults:       make(map[string]*fault),
		hits:         make(map[string]int),
	}
	for _, fn := range cfg.seed {
		fn(s)
	}
	if s.issue == nil {
		s.issue = func(userID int64) string {
			s.seq++
			return fmt.Sprintf("tok-%d-%d", userID, s.seq)
		}
	}
	return s
}

// bump keeps generated IDs above every seeded one.
func (s *state) bump(id int64) {
	if id > s.nextID {
		s.nextID = id
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Server is the fake backend.
type Server struct {
	*httptest.Server
	s *state
}

// NewServer starts a fake backend. Close it when done.
func NewServer(opts ...Option) *Server {
	return newServer(newConfig(opts))
}

func newServer(cfg *config) *Server {
	gin.SetMode(gin.TestMode)
	srv := &Server{s: newState(cfg)}
	srv.Server = httptest.NewServer(srv.router())
	return srv
}

// Fail makes the next times requests to route fail with status and
// message. times <= 0 fails every request until Recover. A route is a
// method and a path pattern, e.g. "POST /courses/sessions/:id/enroll".
func (srv *Server) Fail(route string, status int, message string, times int) {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	if times <= 0 {
		times = -1
	}
	srv.s.faults[route] = &fault{status: status, message: message, remaining: times}
}

// Recover clears the fault injected on route.
func (srv *Server) Recover(route string) {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	delete(srv.s.faults, route)
}

// Hits returns how many requests reached route, failed ones included.
func (srv *Server) Hits(route string) int {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	return srv.s.hits[route]
}

// ResetHits zeroes every hit counter.
func (srv *Server) ResetHits() {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	srv.s.hits = make(map[string]int)
}

// TokenValid reports whether token is an active session token.
func (srv *Server) TokenValid(token string) bool {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	_, ok := srv.s.tokens[token]
	return ok
}

// RevokeTokens invalidates every session token of a user.
func (srv *Server) RevokeTokens(userID int64) {
	srv.s.mu.Lock()
	defer srv.s.mu.Unlock()
	for tok, id := range srv.s.tokens {
		if id == userID {
			delete(srv.s.tokens, tok)
		}
	}
}

// User returns a stored account's user.
func (srv *Server) User(id int64) (learnhub.User, bool) {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	a, ok := srv.s.accounts[id]
	if !ok {
		return learnhub.User{}, false
	}
	return *a.user.Clone(), true
}

// Password returns a stored account's password.
func (srv *Server) Password(id int64) string {
	srv.s.mu.RLock()
	defer srv.s.mu.RUnlock()
	if a, ok := srv.s.accounts[id]; ok {
		return a.password
	}
	return ""
}
