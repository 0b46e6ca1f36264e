// Package server assembles the plugin host.
//
// NewRuntime builds the long-lived components in dependency order:
//
//  1. preference and keychain stores (memory, file or redis)
//  2. event bus and outbound HTTP client
//  3. capability injector, bridge and optional sandbox pool
//  4. package registry, followed by startup discovery
//
// New wraps a runtime in the gin router with recovery, tracing, metrics,
// CORS and optional rate limiting, and mounts the JSON API, /stream and
// /metrics. Run blocks until its context is cancelled and then drains
// in-flight requests within the configured shutdown timeout.
//
//	rt, err := server.NewRuntime(ctx, cfg, logger)
//	defer rt.Close()
//	srv := server.New(rt)
//	defer srv.Close()
//	err = srv.Run(ctx)
package server
