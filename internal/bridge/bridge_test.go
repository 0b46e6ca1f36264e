package bridge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guest = `
plugin.getListings = function () {
	return [{ id: "popular", name: "Popular" }];
};
plugin.echo = function (value) { return value; };
plugin.delayed = function (ms, value) {
	return new Promise(function (resolve) { setTimeout(function () { resolve(value); }, ms); });
};
plugin.never = function () { return new Promise(function () {}); };
plugin.fail = function (msg) { return Promise.reject(new Error(msg)); };
plugin.text = function () { return "not an object"; };
`

type listing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newContext(t *testing.T) *sandbox.Context {
	t.Helper()
	sc, err := sandbox.New(sandbox.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sc.Close() })
	require.NoError(t, sc.Load(context.Background(), "code.js", guest))
	return sc
}

func TestCallRoundTrip(t *testing.T) {
	sc := newContext(t)
	b := New(time.Second, monitoring.NewMetrics(), nil)

	listings, err := Call[[]listing](context.Background(), b, sc, "getListings")
	require.NoError(t, err)
	assert.Equal(t, []listing{{ID: "popular", Name: "Popular"}}, listings)

	echoed, err := Call[listing](context.Background(), b, sc, "echo", listing{ID: "popular", Name: "Popular"})
	require.NoError(t, err)
	assert.Equal(t, listing{ID: "popular", Name: "Popular"}, echoed)

	snap := b.Metrics.Snapshot()
	assert.Equal(t, int64(2), snap.BridgeCalls)
	assert.Equal(t, int64(0), snap.Pending)
}

func TestCallNeverSettlesTimesOut(t *testing.T) {
	sc := newContext(t)
	b := New(100*time.Millisecond, nil, nil)

	start := time.Now()
	_, err := Call[any](context.Background(), b, sc, "never")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, sc.Pending().Len())

	_, ok := Optional[any](context.Background(), b, sc, "never")
	assert.False(t, ok)
}

func TestCallCancellation(t *testing.T) {
	sc := newContext(t)
	b := New(5*time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Call[any](ctx, b, sc, "never")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sc.Pending().Len())

	// a late settle after cancellation is ignored
	_, err = Call[string](context.Background(), b, sc, "echo", "still alive")
	assert.NoError(t, err)
}

func TestCallErrors(t *testing.T) {
	sc := newContext(t)
	b := New(time.Second, nil, nil)

	_, err := Call[any](context.Background(), b, sc, "fail", "nope")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "nope")

	_, err = Call[listing](context.Background(), b, sc, "text")
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Call[any](context.Background(), b, sc, "echo", func() {})
	assert.ErrorIs(t, err, ErrEncode)

	_, err = Call[any](context.Background(), b, sc, "missing")
	assert.ErrorIs(t, err, ErrRejected)

	sc.Close()
	_, err = Call[any](context.Background(), b, sc, "echo", 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentCallsOnOneContext(t *testing.T) {
	sc := newContext(t)
	b := New(5*time.Second, nil, nil)
	const calls = 100

	var wg sync.WaitGroup
	results := make([]string, calls)
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Call[string](context.Background(), b, sc, "delayed", i%7, fmt.Sprintf("call-%d", i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("call-%d", i), results[i])
	}
	assert.Equal(t, 0, sc.Pending().Len())
}
