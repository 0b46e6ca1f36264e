package sandbox

import (
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("script context is closed")
	ErrLoadTimeout    = errors.New("script evaluation timed out")
	ErrExecTimeout    = errors.New("guest job exceeded execution limit")
	ErrInterrupted    = errors.New("script interrupted")
	ErrRejected       = errors.New("guest rejected the call")
	ErrEncode         = errors.New("guest value cannot cross the bridge")
	ErrDuplicateToken = errors.New("callback token already registered")
	ErrPoolClosed     = errors.New("sandbox pool is closed")
)

// Config defines sandbox configuration
type Config struct {
	LoadTimeout  time.Duration // Bound on evaluating the entry script
	ExecTimeout  time.Duration // Bound on one synchronous guest job
	MaxCallStack int           // Guest call stack depth
}

// DefaultConfig returns the standard limits
func DefaultConfig() Config {
	return Config{
		LoadTimeout:  5 * time.Second,
		ExecTimeout:  5 * time.Second,
		MaxCallStack: 1024,
	}
}

// Completion is the single outcome of one pending call. Value holds the
// JSON encoding of the resolved guest value.
type Completion struct {
	Value []byte
	Err   error
}

// Global names shared with guest scripts
const (
	PluginGlobal   = "plugin"
	DispatchGlobal = "__shelfDispatch"
)
