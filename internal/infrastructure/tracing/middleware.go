package tracing

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPMiddleware wraps each request in a span named after its route and
// echoes the ids on the response
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx := Continue(c.Request.Context(),
			TraceID(c.GetHeader(HeaderTraceID)), SpanID(c.GetHeader(HeaderSpanID)))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route)
		span.Annotate(zap.String("path", c.Request.URL.Path))

		c.Header(HeaderTraceID, string(span.Trace))
		c.Header(HeaderSpanID, string(span.ID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		span.SetStatus(c.Writer.Status())
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		span.End(err)
	}
}
