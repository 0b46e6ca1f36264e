package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrOpen       = errors.New("host circuit is open")
	ErrTrialLimit = errors.New("host is on trial after a cooldown")
)

// State of a host circuit
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Policy decides when a host is considered unhealthy and how it recovers.
// Zero fields take the defaults of DefaultPolicy.
type Policy struct {
	// FailureThreshold consecutive failures trip the circuit
	FailureThreshold int
	// FailureRatio trips the circuit once MinRequests have been seen in
	// the current window and this share of them failed. Zero disables it.
	FailureRatio float64
	MinRequests  int
	// Window is how long closed-state counts accumulate before resetting
	Window time.Duration
	// Cooldown is how long an open circuit rejects before trying again
	Cooldown time.Duration
	// Trials is both the number of concurrent half-open requests allowed
	// and the successes needed to close again
	Trials int
	// IsFailure classifies a request outcome
	IsFailure func(err error) bool
	// OnStateChange observes transitions; called with the breaker locked,
	// so it must not call back into the breaker
	OnStateChange func(host string, from, to State)
}

// DefaultPolicy suits scraping traffic: sites vary a lot in reliability
func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 5,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
		Trials:           1,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = def.FailureThreshold
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	if p.Cooldown <= 0 {
		p.Cooldown = def.Cooldown
	}
	if p.Trials <= 0 {
		p.Trials = def.Trials
	}
	if p.IsFailure == nil {
		// the caller giving up says nothing about the host
		p.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	return p
}

// Stats is a snapshot of the current window
type Stats struct {
	Requests int `json:"requests"`
	Failures int `json:"failures"`
	Streak   int `json:"streak"` // consecutive failures
}

// Breaker guards the requests to one host
type Breaker struct {
	host   string
	policy Policy

	mu       sync.Mutex
	state    State
	stats    Stats
	trials   int // half-open requests in flight
	passed   int // half-open successes
	deadline time.Time
	epoch    uint64
}

// New creates a closed breaker for host
func New(host string, policy Policy) *Breaker {
	policy = policy.withDefaults()
	return &Breaker{
		host:     host,
		policy:   policy,
		deadline: time.Now().Add(policy.Window),
	}
}

// Host returns the guarded host
func (b *Breaker) Host() string { return b.host }

// State returns the current state, advancing any elapsed timers
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(time.Now())
	return b.state
}

// Stats returns the counts of the current window
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(time.Now())
	return b.stats
}

// Allow admits one request. The returned done must be called exactly once
// with the request's outcome. Outcomes reported after the circuit changed
// state are ignored.
func (b *Breaker) Allow() (done func(err error), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	switch b.state {
	case StateOpen:
		return nil, ErrOpen
	case StateHalfOpen:
		if b.trials >= b.policy.Trials {
			return nil, ErrTrialLimit
		}
		b.trials++
	}
	b.stats.Requests++

	epoch := b.epoch
	var once sync.Once
	return func(err error) {
		once.Do(func() { b.report(epoch, err) })
	}, nil
}

// Do runs fn when the breaker admits it and records its outcome
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	done, err := b.Allow()
	if err != nil {
		return zero, err
	}

	completed := false
	defer func() {
		if !completed {
			done(errors.New("panic"))
		}
	}()
	result, err := fn()
	completed = true
	done(err)
	return result, err
}

func (b *Breaker) report(epoch uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)
	if epoch != b.epoch {
		return
	}

	failed := b.policy.IsFailure(err)
	switch b.state {
	case StateClosed:
		if !failed {
			b.stats.Streak = 0
			return
		}
		b.stats.Failures++
		b.stats.Streak++
		if b.tripped() {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		b.trials--
		if failed {
			b.transition(StateOpen, now)
			return
		}
		b.passed++
		if b.passed >= b.policy.Trials {
			b.transition(StateClosed, now)
		}
	}
}

func (b *Breaker) tripped() bool {
	if b.stats.Streak >= b.policy.FailureThreshold {
		return true
	}
	p := b.policy
	return p.FailureRatio > 0 && b.stats.Requests >= p.MinRequests &&
		float64(b.stats.Failures)/float64(b.stats.Requests) >= p.FailureRatio
}

// advance applies timers that elapsed by now
func (b *Breaker) advance(now time.Time) {
	switch b.state {
	case StateClosed:
		if now.After(b.deadline) {
			b.stats = Stats{}
			b.deadline = now.Add(b.policy.Window)
			b.epoch++
		}
	case StateOpen:
		if now.After(b.deadline) {
			b.transition(StateHalfOpen, now)
		}
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	b.state = to
	b.stats = Stats{}
	b.trials, b.passed = 0, 0
	b.epoch++

	switch to {
	case StateClosed:
		b.deadline = now.Add(b.policy.Window)
	case StateOpen:
		b.deadline = now.Add(b.policy.Cooldown)
	case StateHalfOpen:
		b.deadline = time.Time{}
	}

	if b.policy.OnStateChange != nil && from != to {
		b.policy.OnStateChange(b.host, from, to)
	}
}
