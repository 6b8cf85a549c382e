// Package audit records session events (sign-in, sign-out, password
// resets) to pluggable handlers without blocking the caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action names a session operation.
type Action string

const (
	ActionInitialize           Action = "initialize"
	ActionLogin                Action = "login"
	ActionRegister             Action = "register"
	ActionSocialLogin          Action = "social_login"
	ActionVerifyOTP            Action = "verify_otp"
	ActionLogout               Action = "logout"
	ActionRefresh              Action = "refresh"
	ActionResetPassword        Action = "reset_password"
	ActionConfirmResetPassword Action = "confirm_reset_password"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Event is one audited session operation.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Action    Action    `json:"action"`
	Result    string    `json:"result"`
	UserID    int64     `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Handler processes audit events. Implementations should not block.
type Handler func(event Event)

// Logger emits audit events to configured handlers.
type Logger struct {
	handlers []Handler
	queue    chan Event
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// Option configures Logger behavior.
type Option func(*Logger)

// WithStdoutHandler adds a handler that writes JSON events to stdout.
func WithStdoutHandler() Option {
	return WithWriterHandler(os.Stdout)
}

// WithWriterHandler adds a handler that writes one JSON event per line to w.
func WithWriterHandler(w io.Writer) Option {
	return func(l *Logger) {
		l.AddHandler(func(e Event) {
			data, _ := json.Marshal(e)
			fmt.Fprintf(w, "%s\n", data)
		})
	}
}

// WithZapHandler adds a handler that logs events through logger.
// Failures are logged at warn level. A nil logger discards events.
func WithZapHandler(logger *zap.Logger) Option {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(l *Logger) {
		l.AddHandler(func(e Event) {
			fields := []zap.Field{
				zap.String("action", string(e.Action)),
				zap.String("result", e.Result),
				zap.Time("timestamp", e.Timestamp),
			}
			if e.RequestID != "" {
				fields = append(fields, zap.String("request_id", e.RequestID))
			}
			if e.UserID != 0 {
				fields = append(fields, zap.Int64("user_id", e.UserID))
			}
			if e.Email != "" {
				fields = append(fields, zap.String("email", e.Email))
			}
			if e.Provider != "" {
				fields = append(fields, zap.String("provider", e.Provider))
			}
			if e.Error != "" {
				fields = append(fields, zap.String("error_kind", e.ErrorKind), zap.String("error", e.Error))
				logger.Warn("session event", fields...)
				return
			}
			logger.Info("session event", fields...)
		})
	}
}

// WithHandler adds a custom event handler.
func WithHandler(h Handler) Option {
	return func(l *Logger) {
		l.AddHandler(h)
	}
}

// New creates a new audit logger with buffered async emission.
// bufferSize: event queue buffer size (default: 1000).
func New(bufferSize int, opts ...Option) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	logger := &Logger{
		queue: make(chan Event, bufferSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(logger)
	}

	logger.wg.Add(1)
	go logger.process()

	return logger
}

// AddHandler adds a handler to receive audit events. It must be called
// before events are logged.
func (l *Logger) AddHandler(h Handler) {
	l.handlers = append(l.handlers, h)
}

// Log emits an audit event asynchronously. Events logged after Close are
// dropped. A nil Logger drops every event.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.queue <- event:
	case <-l.done:
	}
}

// LogContext is Log with the request ID taken from ctx.
func (l *Logger) LogContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = RequestID(ctx)
	}
	l.Log(event)
}

func (l *Logger) process() {
	defer l.wg.Done()

	for {
		select {
		case event := <-l.queue:
			l.emit(event)
		case <-l.done:
			for {
				select {
				case event := <-l.queue:
					l.emit(event)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) emit(event Event) {
	for _, h := range l.handlers {
		h(event)
	}
}

// Close flushes pending events and stops the logger. It is safe to call
// more than once.
func (l *Logger) Close() error {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	return nil
}

// RequestID retrieves the request ID from context.
func RequestID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeyRequestID).(string)
	if !ok {
		return ""
	}
	return id
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

type contextKey string

const contextKeyRequestID contextKey = "audit.request_id"
