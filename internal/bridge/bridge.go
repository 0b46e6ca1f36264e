package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a call whose guest never settles
const DefaultTimeout = 30 * time.Second

var (
	ErrTimeout  = errors.New("bridge call timed out")
	ErrDecode   = errors.New("bridge result could not be decoded")
	ErrEncode   = errors.New("bridge argument could not be encoded")
	ErrRejected = sandbox.ErrRejected
	ErrClosed   = sandbox.ErrClosed
)

// Bridge carries the call policy shared by every façade
type Bridge struct {
	Timeout time.Duration
	Metrics *monitoring.Metrics
	Logger  *logging.Logger
}

// New creates a bridge; a zero timeout means DefaultTimeout
func New(timeout time.Duration, metrics *monitoring.Metrics, logger *logging.Logger) *Bridge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{Timeout: timeout, Metrics: metrics, Logger: logger.Named("bridge")}
}

// Call invokes plugin[method](...args) in sc and decodes the settled value
// into T. The caller waits until the guest settles, ctx is done or the
// timeout elapses; in the last two cases both callback tokens are dropped
// so a late settle is a no-op.
func Call[T any](ctx context.Context, b *Bridge, sc *sandbox.Context, method string, args ...any) (T, error) {
	var zero T
	if b == nil {
		b = New(0, nil, nil)
	}
	call := b.Metrics.StartCall(method)

	encoded, err := encodeArgs(args)
	if err != nil {
		call.Done(monitoring.OutcomeDecode)
		return zero, err
	}

	success, failure := id.NewTokenPair()
	done, err := sc.Pending().Register(success, failure)
	if err != nil {
		call.Done(monitoring.OutcomeError)
		return zero, err
	}
	b.Metrics.AddPending(1)
	defer b.Metrics.AddPending(-1)

	if !sc.Dispatch(method, encoded, success, failure) {
		sc.Pending().Drop(success)
		call.Done(monitoring.OutcomeError)
		return zero, ErrClosed
	}

	deadline := time.NewTimer(b.Timeout)
	defer deadline.Stop()

	select {
	case c := <-done:
		if c.Err != nil {
			outcome := monitoring.OutcomeRejected
			if errors.Is(c.Err, sandbox.ErrEncode) {
				outcome = monitoring.OutcomeDecode
				c.Err = fmt.Errorf("%w: %w", ErrDecode, c.Err)
			}
			call.Done(outcome)
			return zero, c.Err
		}
		var out T
		if err := sonic.Unmarshal(c.Value, &out); err != nil {
			call.Done(monitoring.OutcomeDecode)
			return zero, fmt.Errorf("%w: %s: %v", ErrDecode, method, err)
		}
		call.Done(monitoring.OutcomeOK)
		return out, nil

	case <-ctx.Done():
		sc.Pending().Drop(success)
		call.Done(monitoring.OutcomeCancelled)
		return zero, ctx.Err()

	case <-deadline.C:
		sc.Pending().Drop(success)
		call.Done(monitoring.OutcomeTimeout)
		return zero, fmt.Errorf("%w: %s after %s", ErrTimeout, method, b.Timeout)
	}
}

// Optional is Call for façades: any failure becomes absence and is logged
func Optional[T any](ctx context.Context, b *Bridge, sc *sandbox.Context, method string, args ...any) (T, bool) {
	out, err := Call[T](ctx, b, sc, method, args...)
	if err != nil {
		sc.Logger().Warn("Bridge call failed",
			zap.String("method", method),
			zap.String("package", sc.Owner()),
			zap.Error(err))
		return out, false
	}
	return out, true
}

func encodeArgs(args []any) ([]string, error) {
	encoded := make([]string, len(args))
	for i, arg := range args {
		data, err := sonic.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrEncode, i, err)
		}
		encoded[i] = string(data)
	}
	return encoded, nil
}
