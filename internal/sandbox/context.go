package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
)

// Context is one isolated guest runtime. All guest code runs on the event
// loop goroutine; host goroutines only enqueue work.
type Context struct {
	config  Config
	loop    *eventloop.EventLoop
	vm      *goja.Runtime
	pending *PendingTable
	metrics *monitoring.Metrics

	dispatch goja.Callable
	timers   timers

	mu     sync.RWMutex
	owner  string
	logger *logging.Logger

	closed  atomic.Bool
	stopped chan struct{}
	once    sync.Once
}

// New starts a context with the sandbox globals and dispatcher installed
func New(config Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Context, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if config.MaxCallStack <= 0 {
		config.MaxCallStack = DefaultConfig().MaxCallStack
	}

	c := &Context{
		config:  config,
		loop:    eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		pending: NewPendingTable(),
		metrics: metrics,
		logger:  logger.Named("sandbox"),
		stopped: make(chan struct{}),
	}
	c.loop.Start()

	err := c.Run(context.Background(), func(vm *goja.Runtime) error {
		c.vm = vm
		return c.setupGlobals(vm)
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize context: %w", err)
	}
	return c, nil
}

// setupGlobals configures global objects and security
func (c *Context) setupGlobals(vm *goja.Runtime) error {
	vm.SetMaxCallStackSize(c.config.MaxCallStack)

	// Remove host module access
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if err := c.installTimers(vm); err != nil {
		return err
	}

	if _, err := vm.RunScript("prelude.js", prelude); err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(vm.Get(DispatchGlobal))
	if !ok {
		return errors.New("dispatcher not installed")
	}
	c.dispatch = fn
	return nil
}

// Bind tags the context with its owning package for logging
func (c *Context) Bind(owner string, logger *logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = owner
	if logger != nil {
		c.logger = logger
	}
}

// Owner returns the id of the package bound to this context
func (c *Context) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// Logger returns the context logger
func (c *Context) Logger() *logging.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// Pending exposes the callback table
func (c *Context) Pending() *PendingTable {
	return c.pending
}

// Config returns the limits this context was created with
func (c *Context) Config() Config {
	return c.config
}

// Done is closed once the context has stopped
func (c *Context) Done() <-chan struct{} {
	return c.stopped
}

// Closed reports whether Close has been called
func (c *Context) Closed() bool {
	return c.closed.Load()
}

// Run executes fn on the loop and waits for it. Returning early on ctx
// does not stop fn.
func (c *Context) Run(ctx context.Context, fn func(vm *goja.Runtime) error) error {
	if c.closed.Load() {
		return ErrClosed
	}

	done := make(chan error, 1)
	c.loop.RunOnLoop(func(vm *goja.Runtime) {
		done <- fn(vm)
	})

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrClosed
	}
}

// Go enqueues fn on the loop without waiting. It reports false when the
// context is already closed.
func (c *Context) Go(fn func(vm *goja.Runtime)) bool {
	if c.closed.Load() {
		return false
	}
	c.loop.RunOnLoop(fn)
	return true
}

// Load evaluates a script, interrupting it after the load timeout or when
// ctx is cancelled.
func (c *Context) Load(ctx context.Context, name, src string) error {
	return c.Run(ctx, func(vm *goja.Runtime) error {
		return c.bounded(ctx, c.config.LoadTimeout, ErrLoadTimeout, func() error {
			_, err := vm.RunScript(name, src)
			return err
		})
	})
}

// Dispatch enqueues a guest method call. args are JSON documents; the
// outcome is delivered through the pending table under the given tokens.
func (c *Context) Dispatch(method string, args []string, success, failure id.Token) bool {
	return c.Go(func(vm *goja.Runtime) {
		vals := make([]goja.Value, 0, len(args)+3)
		vals = append(vals,
			vm.ToValue(c.completer(vm, success, false)),
			vm.ToValue(c.completer(vm, failure, true)),
			vm.ToValue(method),
		)
		for _, arg := range args {
			vals = append(vals, vm.ToValue(arg))
		}

		err := c.bounded(context.Background(), c.config.ExecTimeout, ErrExecTimeout, func() error {
			_, err := c.dispatch(goja.Undefined(), vals...)
			return err
		})
		if err != nil {
			c.complete(failure, Completion{Err: fmt.Errorf("%w: %w", ErrRejected, err)})
		}
	})
}

// completer builds the guest-callable handler bound to one token
func (c *Context) completer(vm *goja.Runtime, token id.Token, failure bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		if failure {
			c.complete(token, Completion{Err: fmt.Errorf("%w: %s", ErrRejected, Describe(arg))})
			return goja.Undefined()
		}
		payload, err := Encode(arg)
		if err != nil {
			c.complete(token, Completion{Err: fmt.Errorf("%w: %v", ErrEncode, err)})
			return goja.Undefined()
		}
		c.complete(token, Completion{Value: payload})
		return goja.Undefined()
	}
}

func (c *Context) complete(token id.Token, result Completion) {
	if c.pending.Fire(token, result) {
		return
	}
	c.metrics.IncLateCallbacks()
	c.Logger().Debug("Ignoring late callback", zap.String("token", token.String()))
}

// bounded runs fn, interrupting the VM after limit or on ctx cancellation.
// Must be called on the loop.
func (c *Context) bounded(ctx context.Context, limit time.Duration, reason error, fn func() error) error {
	var mu sync.Mutex
	finished := false
	interrupt := func(cause func() error) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			if !finished {
				c.vm.Interrupt(cause())
			}
		}
	}

	if limit > 0 {
		timer := time.AfterFunc(limit, interrupt(func() error { return reason }))
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, interrupt(func() error { return context.Cause(ctx) }))
	defer stop()

	err := fn()

	mu.Lock()
	finished = true
	mu.Unlock()
	c.vm.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return ErrInterrupted
	}
	return err
}

// Close stops the loop and completes every suspended call with ErrClosed
func (c *Context) Close() error {
	c.once.Do(func() {
		c.closed.Store(true)
		c.stopTimers()
		n := c.pending.Close(ErrClosed)
		if n > 0 {
			c.Logger().Debug("Closed context with pending calls", zap.Int("pending", n))
		}
		if c.vm != nil {
			c.vm.Interrupt(ErrClosed)
		}
		c.loop.Stop()
		close(c.stopped)
	})
	return nil
}

// Encode converts a guest value to JSON. Values that only exist on the
// host side of the bridge, such as functions, fail.
func Encode(v goja.Value) ([]byte, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return []byte("null"), nil
	}
	return sonic.Marshal(v.Export())
}

// Describe renders a rejection reason, preferring Error.message
func Describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return v.String()
}
