package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Guest timers replace the event loop ones so every callback runs under
// the execution limit like any other guest job.

type timer struct {
	fn     goja.Callable
	args   []goja.Value
	delay  time.Duration
	repeat bool
	t      *time.Timer
}

type timers struct {
	mu     sync.Mutex
	next   int64
	active map[int64]*timer
	closed bool
}

func (c *Context) installTimers(vm *goja.Runtime) error {
	c.timers.active = make(map[int64]*timer)

	set := func(repeat, immediate bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(vm.NewTypeError("timer callback is not a function"))
			}
			var delay time.Duration
			rest := call.Arguments
			if len(rest) > 0 {
				rest = rest[1:]
			}
			if !immediate {
				if ms := call.Argument(1).ToFloat(); ms > 0 {
					delay = time.Duration(ms * float64(time.Millisecond))
				}
				if len(rest) > 0 {
					rest = rest[1:]
				}
			}
			if repeat && delay < time.Millisecond {
				delay = time.Millisecond
			}
			return vm.ToValue(c.schedule(&timer{
				fn:     fn,
				args:   append([]goja.Value(nil), rest...),
				delay:  delay,
				repeat: repeat,
			}))
		}
	}
	clearFn := func(call goja.FunctionCall) goja.Value {
		if v := call.Argument(0); !goja.IsUndefined(v) && !goja.IsNull(v) {
			c.cancel(v.ToInteger())
		}
		return goja.Undefined()
	}

	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"setTimeout":     set(false, false),
		"setInterval":    set(true, false),
		"setImmediate":   set(false, true),
		"clearTimeout":   clearFn,
		"clearInterval":  clearFn,
		"clearImmediate": clearFn,
	} {
		if err := vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// schedule registers tm and arms it. Returns 0 once the context is closed.
func (c *Context) schedule(tm *timer) int64 {
	c.timers.mu.Lock()
	defer c.timers.mu.Unlock()
	if c.timers.closed {
		return 0
	}
	c.timers.next++
	id := c.timers.next
	c.timers.active[id] = tm
	c.arm(id, tm)
	return id
}

// arm must be called with timers.mu held
func (c *Context) arm(id int64, tm *timer) {
	tm.t = time.AfterFunc(tm.delay, func() {
		c.Go(func(*goja.Runtime) { c.fire(id) })
	})
}

func (c *Context) cancel(id int64) {
	c.timers.mu.Lock()
	defer c.timers.mu.Unlock()
	if tm, ok := c.timers.active[id]; ok {
		tm.t.Stop()
		delete(c.timers.active, id)
	}
}

// fire runs one timer callback on the loop
func (c *Context) fire(id int64) {
	c.timers.mu.Lock()
	tm, ok := c.timers.active[id]
	if ok && !tm.repeat {
		delete(c.timers.active, id)
	}
	c.timers.mu.Unlock()
	if !ok {
		return
	}

	c.guest("timer", func() error {
		_, err := tm.fn(goja.Undefined(), tm.args...)
		return err
	})

	if !tm.repeat {
		return
	}
	c.timers.mu.Lock()
	defer c.timers.mu.Unlock()
	if _, ok := c.timers.active[id]; ok && !c.timers.closed {
		c.arm(id, tm)
	}
}

func (c *Context) stopTimers() {
	c.timers.mu.Lock()
	defer c.timers.mu.Unlock()
	c.timers.closed = true
	for id, tm := range c.timers.active {
		if tm.t != nil {
			tm.t.Stop()
		}
		delete(c.timers.active, id)
	}
}

// guest runs fn under the execution limit. Must be called on the loop.
func (c *Context) guest(job string, fn func() error) {
	err := c.bounded(context.Background(), c.config.ExecTimeout, ErrExecTimeout, fn)
	if err != nil && !c.closed.Load() {
		c.Logger().Warn("Guest job failed", zap.String("job", job), zap.Error(err))
	}
}

// Schedule enqueues a host completion that re-enters guest code, such as
// settling a promise. fn runs on the loop under the execution limit, which
// also covers the promise reactions it triggers. It reports false when the
// context is already closed.
func (c *Context) Schedule(job string, fn func(vm *goja.Runtime) error) bool {
	return c.Go(func(vm *goja.Runtime) {
		c.guest(job, func() error { return fn(vm) })
	})
}
