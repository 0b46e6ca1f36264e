// Package resilience guards outbound plugin traffic with per-host circuit
// breakers.
//
// A host's circuit opens after a run of failures (or a high failure ratio
// within a window), rejects requests for a cooldown, then admits a limited
// number of trial requests. Enough successful trials close it again; any
// failed trial reopens it.
//
//	hosts := resilience.NewHosts(resilience.DefaultPolicy())
//	resp, err := resilience.Do(hosts.For(u.Host), func() (*Response, error) {
//		return send(req)
//	})
//
// Cancellation by the caller never counts against a host.
package resilience
