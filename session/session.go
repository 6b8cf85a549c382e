// Package session provides the SessionManager implementation: the single
// owner of the signed-in user and the persisted session token.
//
// A Manager is created once at startup, initialized from the token store,
// shared by reference with every component that needs the session, and
// closed at shutdown. Once closed, state updates, notifications and
// navigations become no-ops while in-flight calls still return.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/audit"
	"github.com/chimerakang/learnhub-go/metrics"
	"github.com/chimerakang/learnhub-go/query"
)

// Fallback messages used when a failure carries no backend message.
const (
	FallbackLogin         = "Login failed"
	FallbackRegister      = "Registration failed"
	FallbackSocialLogin   = "Social login failed"
	FallbackVerifyOTP     = "Invalid OTP code"
	FallbackResetPassword = "Could not send reset email"
	FallbackConfirmReset  = "Password reset failed"
)

// Success messages.
const (
	MsgLoggedIn      = "Signed in successfully"
	MsgRegistered    = "Registration successful"
	MsgVerified      = "Account verified successfully"
	MsgLoggedOut     = "Signed out successfully"
	MsgResetSent     = "Password reset email sent"
	MsgPasswordReset = "Password reset successfully"
)

// Routes names the navigation targets of session transitions.
type Routes struct {
	// Authenticated is the landing route after signing in.
	Authenticated string
	// Anonymous is the landing route after signing out.
	Anonymous string
	// Login is the sign-in entry point.
	Login string
}

// DefaultRoutes returns the standard navigation targets.
func DefaultRoutes() Routes {
	return Routes{Authenticated: "/dashboard", Anonymous: "/", Login: "/auth/login"}
}

// State is a snapshot of the session.
type State struct {
	User    *learnhub.User
	Loading bool
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool { return s.User != nil }

// Manager implements learnhub.SessionManager. It is safe for concurrent
// use; conflicting transitions resolve last-writer-wins.
type Manager struct {
	api       learnhub.AuthService
	store     learnhub.TokenStore
	notifier  learnhub.Notifier
	navigator learnhub.Navigator
	routes    Routes
	logger    *zap.Logger
	metrics   *metrics.Metrics
	audit     *audit.Logger
	cache     *query.Cache

	mu          sync.Mutex
	user        *learnhub.User
	inflight    int
	initialized bool
	closed      bool
	subs        map[int]func(State)
	nextSub     int
}

// compile-time check
var _ learnhub.SessionManager = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithNotifier sets where outcome messages are surfaced.
func WithNotifier(n learnhub.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithNavigator sets the navigation sink for session transitions.
func WithNavigator(n learnhub.Navigator) Option {
	return func(m *Manager) { m.navigator = n }
}

// WithRoutes overrides the navigation targets. Empty fields keep their defaults.
func WithRoutes(r Routes) Option {
	return func(m *Manager) {
		if r.Authenticated != "" {
			m.routes.Authenticated = r.Authenticated
		}
		if r.Anonymous != "" {
			m.routes.Anonymous = r.Anonymous
		}
		if r.Login != "" {
			m.routes.Login = r.Login
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithAudit records every session operation to the audit log.
func WithAudit(a *audit.Logger) Option {
	return func(m *Manager) { m.audit = a }
}

// WithCache clears cached server data whenever the signed-in user changes
// and seeds the profile entry on sign-in.
func WithCache(c *query.Cache) Option {
	return func(m *Manager) { m.cache = c }
}

// New creates a Manager. It reports Loading until Initialize returns.
func New(api learnhub.AuthService, store learnhub.TokenStore, opts ...Option) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		notifier:  nopNotifier{},
		navigator: nopNavigator{},
		routes:    DefaultRoutes(),
		logger:    zap.NewNop(),
		inflight:  1,
		subs:      make(map[int]func(State)),
	}
	for _, o := range opts {
		o(m)
	}
	m.logger = m.logger.Named("session")
	return m
}

// Initialize restores the session from the token store. Without a token the
// session stays anonymous. When the profile cannot be fetched the token is
// treated as invalid: it is deleted, the session stays anonymous and the
// fetch error is returned for inspection. Loading is cleared in every case.
func (m *Manager) Initialize(ctx context.Context) error {
	defer m.finishInitialize()

	token, err := m.store.Load(ctx)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, learnhub.ErrNoToken) {
			m.logger.Warn("token store unavailable", zap.Error(err))
		}
		m.record(ctx, audit.ActionInitialize, nil, audit.Event{})
		return nil
	}

	u, err := m.api.Profile(ctx)
	if err != nil {
		m.logger.Warn("stored token rejected, signing out", zap.Error(err))
		if delErr := m.store.Delete(ctx); delErr != nil {
			m.logger.Warn("delete token", zap.Error(delErr))
		}
		m.record(ctx, audit.ActionInitialize, err, audit.Event{})
		return fmt.Errorf("learnhub/session: initialize: %w", err)
	}

	m.setUser(u)
	m.record(ctx, audit.ActionInitialize, nil, audit.Event{UserID: u.ID, Email: u.Email})
	return nil
}

func (m *Manager) finishInitialize() {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = true
	m.inflight--
	m.mu.Unlock()
	m.publish()
}

// Login exchanges credentials for a session and navigates to the
// authenticated landing route.
func (m *Manager) Login(ctx context.Context, req learnhub.LoginRequest) error {
	return m.authenticate(ctx, audit.ActionLogin, FallbackLogin, MsgLoggedIn,
		audit.Event{Email: req.Email},
		func(ctx context.Context) (*learnhub.AuthResponse, error) { return m.api.Login(ctx, req) })
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, req learnhub.RegisterRequest) error {
	return m.authenticate(ctx, audit.ActionRegister, FallbackRegister, MsgRegistered,
		audit.Event{Email: req.Email},
		func(ctx context.Context) (*learnhub.AuthResponse, error) { return m.api.Register(ctx, req) })
}

// LoginWithSocial signs in with a third-party identity assertion.
func (m *Manager) LoginWithSocial(ctx context.Context, req learnhub.SocialAuthRequest) error {
	return m.authenticate(ctx, audit.ActionSocialLogin, FallbackSocialLogin, MsgLoggedIn,
		audit.Event{Provider: req.Provider},
		func(ctx context.Context) (*learnhub.AuthResponse, error) { return m.api.LoginWithSocial(ctx, req) })
}

// VerifyOTP confirms a one-time passcode and signs the account in.
func (m *Manager) VerifyOTP(ctx context.Context, req learnhub.VerifyOTPRequest) error {
	return m.authenticate(ctx, audit.ActionVerifyOTP, FallbackVerifyOTP, MsgVerified,
		audit.Event{Email: req.Email},
		func(ctx context.Context) (*learnhub.AuthResponse, error) { return m.api.VerifyOTP(ctx, req) })
}

// authenticate runs one credential exchange. On success the token is
// persisted before the user is published. On failure the session is left
// as it was and exactly one error notification is emitted.
func (m *Manager) authenticate(
	ctx context.Context,
	action audit.Action,
	fallback, success string,
	ev audit.Event,
	exchange func(context.Context) (*learnhub.AuthResponse, error),
) error {
	m.begin()
	defer m.end()

	resp, err := exchange(ctx)
	if err == nil {
		if saveErr := m.store.Save(ctx, resp.Token); saveErr != nil {
			err = fmt.Errorf("persist token: %w", saveErr)
		}
	}
	if err != nil {
		m.record(ctx, action, err, ev)
		m.notifyError(err, fallback)
		return fmt.Errorf("learnhub/session: %s: %w", action, err)
	}

	u := resp.User
	if m.cache != nil {
		m.cache.Clear()
		m.cache.SetData(query.User(), u.Clone())
	}
	m.setUser(&u)
	ev.UserID = u.ID
	if ev.Email == "" {
		ev.Email = u.Email
	}
	m.record(ctx, action, nil, ev)
	m.notifySuccess(success)
	m.navigate(m.routes.Authenticated)
	return nil
}

// Logout deletes the token, clears the user and navigates to the anonymous
// landing route. It is idempotent; a token store failure is logged.
func (m *Manager) Logout(ctx context.Context) {
	prev := m.CurrentUser()
	if err := m.store.Delete(ctx); err != nil {
		m.logger.Warn("delete token", zap.Error(err))
	}
	if m.cache != nil {
		m.cache.Clear()
	}
	m.setUser(nil)

	ev := audit.Event{}
	if prev != nil {
		ev.UserID, ev.Email = prev.ID, prev.Email
	}
	m.record(ctx, audit.ActionLogout, nil, ev)
	m.notifySuccess(MsgLoggedOut)
	m.navigate(m.routes.Anonymous)
}

// RefreshUser refetches the profile. A failure is logged and returned; the
// session is left untouched and nothing is notified.
func (m *Manager) RefreshUser(ctx context.Context) error {
	m.begin()
	defer m.end()

	u, err := m.api.Profile(ctx)
	if err != nil {
		m.logger.Warn("refresh profile", zap.Error(err))
		m.record(ctx, audit.ActionRefresh, err, audit.Event{})
		return fmt.Errorf("learnhub/session: refresh: %w", err)
	}
	if m.cache != nil {
		m.cache.SetData(query.User(), u.Clone())
	}
	m.setUser(u)
	m.record(ctx, audit.ActionRefresh, nil, audit.Event{UserID: u.ID, Email: u.Email})
	return nil
}

// ResetPassword asks the backend to email a reset link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	m.begin()
	defer m.end()

	ev := audit.Event{Email: email}
	if err := m.api.ResetPassword(ctx, email); err != nil {
		m.record(ctx, audit.ActionResetPassword, err, ev)
		m.notifyError(err, FallbackResetPassword)
		return fmt.Errorf("learnhub/session: %s: %w", audit.ActionResetPassword, err)
	}
	m.record(ctx, audit.ActionResetPassword, nil, ev)
	m.notifySuccess(MsgResetSent)
	return nil
}

// ConfirmResetPassword completes a reset and navigates to the login route.
func (m *Manager) ConfirmResetPassword(ctx context.Context, req learnhub.ConfirmResetPasswordRequest) error {
	m.begin()
	defer m.end()

	if err := m.api.ConfirmResetPassword(ctx, req); err != nil {
		m.record(ctx, audit.ActionConfirmResetPassword, err, audit.Event{})
		m.notifyError(err, FallbackConfirmReset)
		return fmt.Errorf("learnhub/session: %s: %w", audit.ActionConfirmResetPassword, err)
	}
	m.record(ctx, audit.ActionConfirmResetPassword, nil, audit.Event{})
	m.notifySuccess(MsgPasswordReset)
	m.navigate(m.routes.Login)
	return nil
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *learnhub.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// Loading reports whether a transition is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight > 0
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{User: m.user.Clone(), Loading: m.inflight > 0}
}

// Subscribe registers fn to receive every committed state change. The
// returned function unregisters it.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Close disposes the manager. Later state updates, notifications and
// navigations are dropped.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.subs = make(map[int]func(State))
	m.mu.Unlock()
	return nil
}

func (m *Manager) begin() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.inflight++
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) end() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.inflight--
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) setUser(u *learnhub.User) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.user = u.Clone()
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) publish() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	st := m.stateLocked()
	subs := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) notifySuccess(msg string) {
	if !m.isClosed() {
		m.notifier.Success(msg)
	}
}

func (m *Manager) notifyError(err error, fallback string) {
	if m.isClosed() {
		return
	}
	msg := learnhub.MessageOf(err)
	if msg == "" {
		msg = fallback
	}
	m.notifier.Error(msg)
}

func (m *Manager) navigate(route string) {
	if !m.isClosed() && route != "" {
		m.navigator.Navigate(route)
	}
}

func (m *Manager) record(ctx context.Context, action audit.Action, err error, ev audit.Event) {
	m.metrics.RecordSessionOp(string(action), err)
	ev.Action = action
	ev.Result = audit.ResultSuccess
	if err != nil {
		ev.Result = audit.ResultFailure
		ev.ErrorKind = learnhub.KindOf(err).String()
		ev.Error = err.Error()
	}
	m.audit.LogContext(ctx, ev)
	if err != nil {
		m.logger.Debug(string(action)+" failed", zap.Error(err))
	}
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}
