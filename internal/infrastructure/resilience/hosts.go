package resilience

import (
	"sort"
	"sync"
)

// Hosts keeps one breaker per remote host so a single misbehaving site
// cannot take down requests to every other site
type Hosts struct {
	policy Policy

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewHosts creates an empty set sharing policy across hosts
func NewHosts(policy Policy) *Hosts {
	return &Hosts{
		policy:   policy,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker of host, creating it on first use
func (h *Hosts) For(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.breakers[host]
	if !ok {
		b = New(host, h.policy)
		h.breakers[host] = b
	}
	return b
}

// Unhealthy lists hosts whose circuit is not closed, sorted
func (h *Hosts) Unhealthy() []string {
	h.mu.Lock()
	breakers := make([]*Breaker, 0, len(h.breakers))
	for _, b := range h.breakers {
		breakers = append(breakers, b)
	}
	h.mu.Unlock()

	var hosts []string
	for _, b := range breakers {
		if b.State() != StateClosed {
			hosts = append(hosts, b.Host())
		}
	}
	sort.Strings(hosts)
	return hosts
}
