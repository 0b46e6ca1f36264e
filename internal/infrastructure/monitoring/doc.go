/*
Package monitoring exposes the host's Prometheus metrics.

Covered: bridge calls into guest code (outcome, latency, pending and late
callbacks), package installs and removals, guest fetch traffic, the HTTP
API and the event stream. Each Metrics owns a private registry so several
hosts, or tests, can share a process. A nil *Metrics records nothing.

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	call := metrics.StartCall("getListings")
	// resume the guest, wait for its callback
	call.Done(monitoring.OutcomeOK)
*/
package monitoring
