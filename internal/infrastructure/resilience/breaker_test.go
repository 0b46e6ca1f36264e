package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := Do(b, func() (int, error) { return 0, errBoom })
		require.ErrorIs(t, err, errBoom)
	}
}

func TestBreakerTripsOnStreak(t *testing.T) {
	b := New("site.example", Policy{FailureThreshold: 3, Cooldown: time.Minute})

	fail(t, b, 2)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Stats{Requests: 2, Failures: 2, Streak: 2}, b.Stats())

	// a success breaks the streak
	_, err := Do(b, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 0, b.Stats().Streak)

	fail(t, b, 3)
	assert.Equal(t, StateOpen, b.State())

	called := false
	_, err = Do(b, func() (int, error) { called = true; return 0, nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerTripsOnRatio(t *testing.T) {
	b := New("site.example", Policy{FailureThreshold: 100, FailureRatio: 0.5, MinRequests: 4})

	for i := 0; i < 3; i++ {
		Do(b, func() (int, error) { return 0, nil })
	}
	fail(t, b, 2)
	assert.Equal(t, StateClosed, b.State(), "2 of 5 failed")

	fail(t, b, 1)
	assert.Equal(t, StateOpen, b.State(), "3 of 6 failed")
}

func TestBreakerRecovers(t *testing.T) {
	var transitions []string
	b := New("site.example", Policy{
		FailureThreshold: 1,
		Cooldown:         20 * time.Millisecond,
		Trials:           2,
		OnStateChange: func(host string, from, to State) {
			transitions = append(transitions, host+":"+from.String()+">"+to.String())
		},
	})

	fail(t, b, 1)
	require.Equal(t, StateOpen, b.State())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	// only Trials requests may be in flight while half-open
	done1, err := b.Allow()
	require.NoError(t, err)
	done2, err := b.Allow()
	require.NoError(t, err)
	_, err = b.Allow()
	assert.ErrorIs(t, err, ErrTrialLimit)

	done1(nil)
	assert.Equal(t, StateHalfOpen, b.State())
	done2(nil)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{
		"site.example:closed>open",
		"site.example:open>half-open",
		"site.example:half-open>closed",
	}, transitions)
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	b := New("site.example", Policy{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})
	fail(t, b, 1)
	time.Sleep(20 * time.Millisecond)

	fail(t, b, 1)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresStaleOutcomes(t *testing.T) {
	b := New("site.example", Policy{FailureThreshold: 1, Cooldown: time.Minute})

	slow, err := b.Allow()
	require.NoError(t, err)
	fail(t, b, 1)
	require.Equal(t, StateOpen, b.State())

	// admitted before the trip; must not touch the open circuit
	slow(nil)
	slow(errBoom)
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, Stats{}, b.Stats())
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := New("site.example", Policy{FailureThreshold: 1})
	_, err := Do(b, func() (int, error) { return 0, context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCountsPanics(t *testing.T) {
	b := New("site.example", Policy{FailureThreshold: 1})
	assert.Panics(t, func() {
		Do(b, func() (int, error) { panic("guest bug") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestHostsIsolation(t *testing.T) {
	hosts := NewHosts(Policy{FailureThreshold: 1, Cooldown: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hosts.For("a.example")
		}()
	}
	wg.Wait()
	assert.Same(t, hosts.For("a.example"), hosts.For("a.example"))

	fail(t, hosts.For("b.example"), 1)
	fail(t, hosts.For("c.example"), 1)
	assert.Equal(t, StateClosed, hosts.For("a.example").State())
	assert.Equal(t, []string{"b.example", "c.example"}, hosts.Unhealthy())
}
