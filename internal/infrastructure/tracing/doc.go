/*
Package tracing attaches a trace to every API request and to the registry
work it triggers.

A trace id arriving in X-Trace-ID is continued, otherwise a new one is
minted. Both ids are echoed on the response so a client can quote them when
reporting a misbehaving package. Finished spans are logged by a background
writer.

	tracer := tracing.New("shelf", logger.Logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

Code below the handlers opens spans without holding the tracer:

	ctx, span := tracing.Child(ctx, "registry.install")
	defer func() { span.End(err) }()
*/
package tracing
