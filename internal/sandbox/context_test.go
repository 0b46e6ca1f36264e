package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, script string) *Context {
	t.Helper()
	config := DefaultConfig()
	config.LoadTimeout = 200 * time.Millisecond
	config.ExecTimeout = 200 * time.Millisecond

	sc, err := New(config, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sc.Close() })

	if script != "" {
		require.NoError(t, sc.Load(context.Background(), "code.js", script))
	}
	return sc
}

func call(t *testing.T, sc *Context, method string, args ...string) Completion {
	t.Helper()
	success, failure := id.NewTokenPair()
	done, err := sc.Pending().Register(success, failure)
	require.NoError(t, err)
	require.True(t, sc.Dispatch(method, args, success, failure))

	select {
	case c := <-done:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("%s never completed", method)
		return Completion{}
	}
}

func eval(t *testing.T, sc *Context, src string) goja.Value {
	t.Helper()
	var out goja.Value
	require.NoError(t, sc.Run(context.Background(), func(vm *goja.Runtime) error {
		v, err := vm.RunString(src)
		out = v
		return err
	}))
	return out
}

func TestHostGlobalsRemoved(t *testing.T) {
	sc := newTestContext(t, "")

	for _, name := range []string{"require", "process", "module", "exports"} {
		assert.Equal(t, "undefined", eval(t, sc, "typeof "+name).String(), name)
	}
	assert.Equal(t, "object", eval(t, sc, "typeof plugin").String())
	assert.Equal(t, "function", eval(t, sc, "typeof setTimeout").String())
}

func TestDispatchResolvesValue(t *testing.T) {
	sc := newTestContext(t, `plugin.echo = function (x, n) { return { x: x, n: n }; };`)

	c := call(t, sc, "echo", `{"id":"popular","name":"Popular"}`, `3`)
	require.NoError(t, c.Err)
	assert.JSONEq(t, `{"x":{"id":"popular","name":"Popular"},"n":3}`, string(c.Value))
	assert.Equal(t, 0, sc.Pending().Len())
}

func TestDispatchAwaitsPromise(t *testing.T) {
	sc := newTestContext(t, `
plugin = {
	later: function () {
		return new Promise(function (resolve) { setTimeout(function () { resolve(["a", "b"]); }, 10); });
	},
	nothing: async function () {}
};`)

	c := call(t, sc, "later")
	require.NoError(t, c.Err)
	assert.JSONEq(t, `["a","b"]`, string(c.Value))

	c = call(t, sc, "nothing")
	require.NoError(t, c.Err)
	assert.Equal(t, "null", string(c.Value))
}

func TestDispatchRejections(t *testing.T) {
	sc := newTestContext(t, `
plugin.boom = function () { throw new Error("boom"); };
plugin.async = async function () { throw new Error("async boom"); };
plugin.fn = function () { return function () {}; };
plugin.spin = function () { while (true) {} };
`)

	c := call(t, sc, "boom")
	assert.ErrorIs(t, c.Err, ErrRejected)
	assert.Contains(t, c.Err.Error(), "boom")

	c = call(t, sc, "async")
	assert.ErrorIs(t, c.Err, ErrRejected)
	assert.Contains(t, c.Err.Error(), "async boom")

	c = call(t, sc, "missing")
	assert.ErrorIs(t, c.Err, ErrRejected)
	assert.Contains(t, c.Err.Error(), "does not implement missing")

	c = call(t, sc, "fn")
	assert.ErrorIs(t, c.Err, ErrEncode)

	c = call(t, sc, "spin")
	assert.ErrorIs(t, c.Err, ErrRejected)
	assert.ErrorIs(t, c.Err, ErrExecTimeout)

	// the context survives an interrupted job
	assert.Equal(t, int64(2), eval(t, sc, "1 + 1").Export())
}

func TestCompletersFireAtMostOnce(t *testing.T) {
	sc := newTestContext(t, "")
	success, failure := id.NewTokenPair()
	done, err := sc.Pending().Register(success, failure)
	require.NoError(t, err)

	require.NoError(t, sc.Run(context.Background(), func(vm *goja.Runtime) error {
		if err := vm.Set("ok", sc.completer(vm, success, false)); err != nil {
			return err
		}
		if err := vm.Set("fail", sc.completer(vm, failure, true)); err != nil {
			return err
		}
		_, err := vm.RunString(`ok(1); fail(new Error("late")); ok(2);`)
		return err
	}))

	c := <-done
	require.NoError(t, c.Err)
	assert.Equal(t, "1", string(c.Value))
	select {
	case extra := <-done:
		t.Fatalf("unexpected second completion %+v", extra)
	default:
	}
	assert.Equal(t, 0, sc.Pending().Len())
}

func TestLoadTimeout(t *testing.T) {
	sc := newTestContext(t, "")

	err := sc.Load(context.Background(), "code.js", "while (true) {}")
	assert.ErrorIs(t, err, ErrLoadTimeout)

	require.NoError(t, sc.Load(context.Background(), "code.js", "plugin.ok = function () { return true; };"))
	c := call(t, sc, "ok")
	require.NoError(t, c.Err)
	assert.Equal(t, "true", string(c.Value))
}

func TestLoadSyntaxError(t *testing.T) {
	sc := newTestContext(t, "")
	err := sc.Load(context.Background(), "code.js", "plugin.x = function ( {")
	assert.Error(t, err)
}

func TestRunawayTimerIsInterrupted(t *testing.T) {
	sc := newTestContext(t, `
plugin.spin = function () { setTimeout(function () { while (true) {} }, 0); return 1; };
plugin.boom = function () { setTimeout(function () { throw new Error("boom"); }, 0); return 1; };
plugin.ping = function () { return "pong"; };`)

	for _, method := range []string{"spin", "boom"} {
		c := call(t, sc, method)
		require.NoError(t, c.Err)
	}
	time.Sleep(500 * time.Millisecond)

	c := call(t, sc, "ping")
	require.NoError(t, c.Err)
	assert.Equal(t, `"pong"`, string(c.Value))
}

func TestRunawayPromiseReactionIsInterrupted(t *testing.T) {
	sc := newTestContext(t, `
var settle;
plugin.hang = function () {
	return new Promise(function (resolve) { settle = resolve; }).then(function () { while (true) {} });
};
plugin.ping = function () { return "pong"; };`)

	success, failure := id.NewTokenPair()
	_, err := sc.Pending().Register(success, failure)
	require.NoError(t, err)
	require.True(t, sc.Dispatch("hang", nil, success, failure))

	require.True(t, sc.Schedule("settle", func(vm *goja.Runtime) error {
		_, err := vm.RunString("settle()")
		return err
	}))

	c := call(t, sc, "ping")
	require.NoError(t, c.Err)
	assert.Equal(t, `"pong"`, string(c.Value))
}

func TestTimers(t *testing.T) {
	sc := newTestContext(t, `
var ticks = [], fired = [];
plugin.start = function () {
	var id = setInterval(function (step) {
		ticks.push(step);
		if (ticks.length === 3) { clearInterval(id); }
	}, 5, "tick");
	var cancelled = setTimeout(function () { fired.push("cancelled"); }, 5);
	clearTimeout(cancelled);
	setImmediate(function (v) { fired.push(v); }, "now");
	setTimeout(function () { fired.push("later"); }, 20);
	return id > 0;
};
plugin.state = function () { return { ticks: ticks, fired: fired }; };`)

	c := call(t, sc, "start")
	require.NoError(t, c.Err)
	assert.Equal(t, "true", string(c.Value))

	time.Sleep(150 * time.Millisecond)
	c = call(t, sc, "state")
	require.NoError(t, c.Err)
	assert.JSONEq(t, `{"ticks":["tick","tick","tick"],"fired":["now","later"]}`, string(c.Value))
}

func TestTimerRejectsNonFunction(t *testing.T) {
	sc := newTestContext(t, "")
	err := sc.Run(context.Background(), func(vm *goja.Runtime) error {
		_, err := vm.RunString(`setTimeout("while(true){}", 0)`)
		return err
	})
	assert.Error(t, err)
}

func TestCloseCompletesPending(t *testing.T) {
	sc := newTestContext(t, `plugin.never = function () { return new Promise(function () {}); };`)

	success, failure := id.NewTokenPair()
	done, err := sc.Pending().Register(success, failure)
	require.NoError(t, err)
	require.True(t, sc.Dispatch("never", nil, success, failure))

	require.NoError(t, sc.Close())
	assert.ErrorIs(t, (<-done).Err, ErrClosed)
	assert.True(t, sc.Closed())
	assert.False(t, sc.Dispatch("never", nil, success, failure))
	assert.ErrorIs(t, sc.Run(context.Background(), func(*goja.Runtime) error { return nil }), ErrClosed)
	assert.NoError(t, sc.Close())
}

func TestBindOwner(t *testing.T) {
	sc := newTestContext(t, "")
	assert.Empty(t, sc.Owner())
	sc.Bind("demo", nil)
	assert.Equal(t, "demo", sc.Owner())
	assert.NotNil(t, sc.Logger())
}

func TestPool(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2, nil, nil)
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Available)

	for i := 0; i < 3; i++ {
		sc, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(4), eval(t, sc, "2 * 2").Export())
		sc.Close()
	}

	require.NoError(t, pool.Close())
	assert.True(t, pool.Stats().Closed)
	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}
