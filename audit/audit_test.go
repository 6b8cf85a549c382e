package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestEventEmission(t *testing.T) {
	rec := &recorder{}
	logger := New(10, WithHandler(rec.handle))

	logger.Log(Event{Action: ActionLogin, Result: ResultSuccess, UserID: 1, Email: "a@b.com"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != 1 {
		t.Errorf("expected user 1, got %d", events[0].UserID)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestMultipleHandlers(t *testing.T) {
	rec1, rec2 := &recorder{}, &recorder{}
	logger := New(10, WithHandler(rec1.handle), WithHandler(rec2.handle))

	logger.Log(Event{Action: ActionLogout, Result: ResultSuccess})
	_ = logger.Close()

	if n := len(rec1.all()); n != 1 {
		t.Fatalf("handler1: expected 1 event, got %d", n)
	}
	if n := len(rec2.all()); n != 1 {
		t.Fatalf("handler2: expected 1 event, got %d", n)
	}
}

func TestLogContext_RequestID(t *testing.T) {
	rec := &recorder{}
	logger := New(10, WithHandler(rec.handle))

	ctx := WithRequestID(context.Background(), "req-12345")
	if got := RequestID(ctx); got != "req-12345" {
		t.Errorf("expected req-12345, got %s", got)
	}
	logger.LogContext(ctx, Event{Action: ActionRefresh, Result: ResultSuccess})
	_ = logger.Close()

	events := rec.all()
	if len(events) != 1 || events[0].RequestID != "req-12345" {
		t.Fatalf("request id not propagated: %+v", events)
	}
}

func TestEventTimestamp(t *testing.T) {
	rec := &recorder{}
	logger := New(10, WithHandler(rec.handle))

	now := time.Now()
	logger.Log(Event{Action: ActionLogin, Result: ResultSuccess})
	_ = logger.Close()

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.Before(now) || events[0].Timestamp.After(now.Add(time.Second)) {
		t.Error("timestamp not properly set")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	var mu sync.Mutex
	count := 0
	logger := New(5, WithHandler(func(Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
		time.Sleep(10 * time.Millisecond)
	}))

	for range 5 {
		logger.Log(Event{Action: ActionLogin, Result: ResultSuccess})
	}
	_ = logger.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("expected 5 events processed, got %d", count)
	}
}

func TestLogAfterClose(t *testing.T) {
	rec := &recorder{}
	logger := New(1, WithHandler(rec.handle))
	_ = logger.Close()
	_ = logger.Close()

	logger.Log(Event{Action: ActionLogin, Result: ResultSuccess})

	if n := len(rec.all()); n != 0 {
		t.Errorf("expected event to be dropped, got %d", n)
	}
}

func TestNilLogger(t *testing.T) {
	var logger *Logger
	logger.Log(Event{Action: ActionLogin})
}

func TestWriterHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(10, WithWriterHandler(&buf))

	logger.Log(Event{Action: ActionVerifyOTP, Result: ResultFailure, Email: "a@b.com", ErrorKind: "rejected", Error: "Invalid OTP code"})
	_ = logger.Close()

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("handler did not write JSON: %v (%q)", err, line)
	}
	if got["action"] != "verify_otp" || got["result"] != "failure" || got["error"] != "Invalid OTP code" {
		t.Errorf("unexpected event %v", got)
	}
	if _, ok := got["user_id"]; ok {
		t.Error("zero user_id should be omitted")
	}
}

func TestZapHandler(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := New(10, WithZapHandler(zap.New(core)))

	logger.Log(Event{Action: ActionLogin, Result: ResultSuccess, UserID: 7})
	logger.Log(Event{Action: ActionLogin, Result: ResultFailure, ErrorKind: "unauthorized", Error: "bad credentials"})
	_ = logger.Close()

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["user_id"] != int64(7) {
		t.Errorf("unexpected success entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "bad credentials" {
		t.Errorf("unexpected failure entry %+v", entries[1])
	}
	if entries[0].LoggerName != "audit" {
		t.Errorf("expected logger name audit, got %q", entries[0].LoggerName)
	}
}

func TestZapHandler_NilLogger(t *testing.T) {
	logger := New(10, WithZapHandler(nil))
	logger.Log(Event{Action: ActionLogout, Result: ResultSuccess})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
