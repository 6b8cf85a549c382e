package query

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/transport"
)

type result struct {
	v   string
	err error
}

func TestFetch_RequestTimeoutRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	tc, err := transport.New(srv.URL, transport.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	c, _ := newTestCache(t)

	_, err = Fetch(context.Background(), c, Courses(), func(ctx context.Context) ([]learnhub.Course, error) {
		return transport.Call[[]learnhub.Course](ctx, tc, transport.Get("/courses", nil)).Unwrap()
	})

	require.Error(t, err)
	assert.Equal(t, learnhub.KindTransport, learnhub.KindOf(err))
	assert.Equal(t, int32(3), hits.Load())
}

func TestRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int
	_, err := fastPolicy().retry(ctx, func(context.Context) (any, error) {
		calls++
		return nil, &learnhub.Error{Kind: learnhub.KindHTTP, Status: 503}
	}, func(error) {})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetch_InvalidatedDuringLoadIsNotStored(t *testing.T) {
	c, _ := newTestCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "before-enroll", nil
		}
		return "after-enroll", nil
	}

	done := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, Enrollments(), fn)
		done <- result{v, err}
	}()
	<-started

	_, err := Mutate(context.Background(), c, func(context.Context) (string, error) { return "ok", nil },
		Invalidates(Enrollments()))
	require.NoError(t, err)
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "before-enroll", r.v)
	_, ok := GetData[string](c, Enrollments())
	assert.False(t, ok)

	v, err := Fetch(context.Background(), c, Enrollments(), fn)
	require.NoError(t, err)
	assert.Equal(t, "after-enroll", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ClearedDuringLoadIsNotStored(t *testing.T) {
	c, _ := newTestCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		close(started)
		<-release
		return "alice", nil
	}

	done := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, UserEnrollments(1), fn)
		done <- result{v, err}
	}()
	<-started
	c.Clear()
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, 0, c.Len())
}

func TestFetch_SharedLoadSurvivesCallerCancel(t *testing.T) {
	c, _ := newTestCache(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) (string, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "v", nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	doneA := make(chan result, 1)
	go func() {
		v, err := Fetch(ctxA, c, Course(7), fn)
		doneA <- result{v, err}
	}()
	<-started

	doneB := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, Course(7), fn)
		doneB <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	a := <-doneA
	assert.ErrorIs(t, a.err, context.Canceled)

	close(release)
	b := <-doneB
	require.NoError(t, b.err)
	assert.Equal(t, "v", b.v)
	assert.Equal(t, int32(1), calls.Load())

	got, ok := GetData[string](c, Course(7))
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}
