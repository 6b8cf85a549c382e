package query

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	learnhub "github.com/chimerakang/learnhub-go"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.RetryDelay = time.Millisecond
	p.MaxRetryDelay = 2 * time.Millisecond
	return p
}

func newTestCache(t *testing.T, opts ...Option) (*Cache, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	c := New(append([]Option{WithPolicy(fastPolicy()), WithClock(clk.Now)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, clk
}

func counting[T any](v T, err error) (func(context.Context) (T, error), *atomic.Int32) {
	var n atomic.Int32
	return func(context.Context) (T, error) {
		n.Add(1)
		return v, err
	}, &n
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 5*time.Minute, p.StaleTime)
	assert.Equal(t, 10*time.Minute, p.CacheTime)
	assert.False(t, p.RefetchOnFocus)
	assert.Equal(t, 3, p.MaxAttempts)
}

func TestFetch_CachesFreshValue(t *testing.T) {
	c, _ := newTestCache(t)
	fn, calls := counting("go", nil)

	for range 3 {
		v, err := Fetch(context.Background(), c, Course(42), fn)
		require.NoError(t, err)
		assert.Equal(t, "go", v)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_DistinctKeysDistinctEntries(t *testing.T) {
	c, _ := newTestCache(t)
	fn, calls := counting("x", nil)

	_, _ = Fetch(context.Background(), c, Course(42), fn)
	_, _ = Fetch(context.Background(), c, Course(43), fn)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestFetch_UnauthorizedIsNotRetried(t *testing.T) {
	c, _ := newTestCache(t)
	fn, calls := counting[string]("", &learnhub.Error{Kind: learnhub.KindUnauthorized, Status: http.StatusUnauthorized})

	_, err := Fetch(context.Background(), c, User(), fn)

	require.Error(t, err)
	assert.Equal(t, learnhub.KindUnauthorized, learnhub.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_TerminalKindsAreNotRetried(t *testing.T) {
	for _, kind := range []learnhub.ErrorKind{learnhub.KindForbidden, learnhub.KindNotFound} {
		c, _ := newTestCache(t)
		fn, calls := counting[int](0, &learnhub.Error{Kind: kind})

		_, err := Fetch(context.Background(), c, Course(1), fn)

		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load(), kind.String())
	}
}

func TestFetch_TransientErrorRetriedThreeTimes(t *testing.T) {
	c, _ := newTestCache(t)
	fn, calls := counting[string]("", errors.New("connection reset"))

	_, err := Fetch(context.Background(), c, Courses(), fn)

	require.Error(t, err)
	assert.Equal(t, "connection reset", err.Error())
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestFetch_RecoversWithinAttempts(t *testing.T) {
	c, _ := newTestCache(t)
	var n atomic.Int32
	fn := func(context.Context) (string, error) {
		if n.Add(1) < 3 {
			return "", &learnhub.Error{Kind: learnhub.KindHTTP, Status: http.StatusBadGateway}
		}
		return "ok", nil
	}

	v, err := Fetch(context.Background(), c, Categories(), fn)

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(3), n.Load())
}

func TestFetch_StaleWhileRevalidate(t *testing.T) {
	c, clk := newTestCache(t)
	var n atomic.Int32
	refreshed := make(chan struct{})
	fn := func(context.Context) (int32, error) {
		v := n.Add(1)
		if v == 2 {
			defer close(refreshed)
		}
		return v, nil
	}

	v, err := Fetch(context.Background(), c, Favorites(), fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	clk.Advance(6 * time.Minute)

	// The stale value is served immediately.
	v, err = Fetch(context.Background(), c, Favorites(), fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("background refresh did not run")
	}
	require.Eventually(t, func() bool {
		got, ok := GetData[int32](c, Favorites())
		return ok && got == 2
	}, time.Second, 5*time.Millisecond)
}

func TestFetch_StaleWithoutRevalidateWaits(t *testing.T) {
	c, clk := newTestCache(t)
	var n atomic.Int32
	fn := func(context.Context) (int32, error) { return n.Add(1), nil }

	_, _ = Fetch(context.Background(), c, Course(1), fn)
	clk.Advance(6 * time.Minute)

	v, err := Fetch(context.Background(), c, Course(1), fn, StaleWhileRevalidate(false))
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestFetch_PerCallStaleTime(t *testing.T) {
	c, clk := newTestCache(t)
	var n atomic.Int32
	fn := func(context.Context) (int32, error) { return n.Add(1), nil }

	_, _ = Fetch(context.Background(), c, Course(1), fn)
	clk.Advance(time.Minute)

	v, _ := Fetch(context.Background(), c, Course(1), fn, StaleTime(30*time.Second), StaleWhileRevalidate(false))
	assert.Equal(t, int32(2), v)
}

func TestFetch_ConcurrentCallsShareRequest(t *testing.T) {
	c, _ := newTestCache(t)
	var n atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		n.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, Course(7), fn)
			assert.NoError(t, err)
			assert.Equal(t, "v", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), n.Load())
}

func TestCache_RetentionEvictsUnused(t *testing.T) {
	p := fastPolicy()
	p.CacheTime = 50 * time.Millisecond
	c := New(WithPolicy(p))
	t.Cleanup(func() { _ = c.Close() })

	c.SetData(Course(1), "x")
	_, ok := GetData[string](c, Course(1))
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := c.entries.Peek(Course(1).String())
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(t)
	c.SetData(Course(1), "a")
	c.SetData(CourseModules(1), "b")
	c.SetData(Course(2), "c")
	c.SetData(Enrollments(), "d")

	n := c.Invalidate(Course(1))

	assert.Equal(t, 2, n)
	_, ok := GetData[string](c, Course(2))
	assert.True(t, ok)
	_, ok = GetData[string](c, CourseModules(1))
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCache_FocusDisabledByDefault(t *testing.T) {
	c, clk := newTestCache(t)
	fn, calls := counting("v", nil)
	_, _ = Fetch(context.Background(), c, Courses(), fn)
	clk.Advance(time.Hour)

	assert.Equal(t, 0, c.Focus())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_FocusRefetchesStaleWhenEnabled(t *testing.T) {
	p := fastPolicy()
	p.RefetchOnFocus = true
	c, clk := newTestCache(t, WithPolicy(p))
	fn, calls := counting("v", nil)
	_, _ = Fetch(context.Background(), c, Courses(), fn)
	c.SetData(User(), "no fetcher")
	clk.Advance(6 * time.Minute)

	assert.Equal(t, 1, c.Focus())
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestMutate_AttemptedOnce(t *testing.T) {
	c, _ := newTestCache(t)
	c.SetData(Enrollments(), "old")
	fn, calls := counting[struct{}](struct{}{}, errors.New("503 service unavailable"))

	_, err := Mutate(context.Background(), c, fn, Invalidates(Enrollments()))

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	_, ok := GetData[string](c, Enrollments())
	assert.True(t, ok, "failed mutation must not invalidate")
}

func TestMutate_InvalidatesAndUpdates(t *testing.T) {
	c, _ := newTestCache(t)
	c.SetData(UserEnrollments(9), "old")
	fn, _ := counting("profile", nil)

	v, err := Mutate(context.Background(), c, fn, Invalidates(Enrollments()), Updates(User()))

	require.NoError(t, err)
	assert.Equal(t, "profile", v)
	_, ok := GetData[string](c, UserEnrollments(9))
	assert.False(t, ok)
	got, ok := GetData[string](c, User())
	assert.True(t, ok)
	assert.Equal(t, "profile", got)
}

func TestClose_StopsRevalidation(t *testing.T) {
	c, clk := newTestCache(t)
	fn, calls := counting("v", nil)
	_, _ = Fetch(context.Background(), c, Courses(), fn)
	require.NoError(t, c.Close())
	clk.Advance(time.Hour)

	v, err := Fetch(context.Background(), c, Courses(), fn)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Equal(t, int32(1), calls.Load())
}
