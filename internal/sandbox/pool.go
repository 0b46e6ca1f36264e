package sandbox

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Pool keeps pre-started contexts so package loads skip loop startup.
// Contexts are single use: guest state cannot be reset, so callers Close
// what they acquire and the pool refills in the background.
type Pool struct {
	config  Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	warm    chan *Context
	size    int

	mu      sync.Mutex
	closed  bool
	created int
	wg      sync.WaitGroup
}

// PoolStats is a point-in-time view of the pool
type PoolStats struct {
	Size      int  `json:"size"`
	Available int  `json:"available"`
	Created   int  `json:"created"`
	Closed    bool `json:"closed"`
}

// NewPool creates a pool and warms size contexts
func NewPool(config Config, size int, logger *logging.Logger, metrics *monitoring.Metrics) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	pool := &Pool{
		config:  config,
		logger:  logger,
		metrics: metrics,
		warm:    make(chan *Context, size),
		size:    size,
	}

	for i := 0; i < size; i++ {
		sc, err := pool.create()
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.warm <- sc
	}
	return pool, nil
}

// Acquire returns a warm context, or a fresh one when none is waiting
func (p *Pool) Acquire(ctx context.Context) (*Context, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()
	go p.refill()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case sc := <-p.warm:
		return sc, nil
	default:
		return p.create()
	}
}

func (p *Pool) create() (*Context, error) {
	sc, err := New(p.config, p.logger, p.metrics)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.created++
	p.mu.Unlock()
	return sc, nil
}

func (p *Pool) refill() {
	defer p.wg.Done()

	if len(p.warm) >= p.size {
		return
	}
	sc, err := p.create()
	if err != nil {
		p.logger.Warn("Failed to warm script context", zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		sc.Close()
		return
	}
	select {
	case p.warm <- sc:
	default:
		sc.Close()
	}
}

// Close closes every warm context
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	for {
		select {
		case sc := <-p.warm:
			sc.Close()
		default:
			return nil
		}
	}
}

// Stats returns pool statistics
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Size:      p.size,
		Available: len(p.warm),
		Created:   p.created,
		Closed:    p.closed,
	}
}
