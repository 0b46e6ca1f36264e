package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records every API request against its route pattern, never
// the raw path, since entry ids would otherwise explode label cardinality
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(began))
	}
}

// Call is one in-flight bridge call being measured
type Call struct {
	m      *Metrics
	method string
	began  time.Time
}

// StartCall begins measuring a bridge call to method
func (m *Metrics) StartCall(method string) *Call {
	return &Call{m: m, method: method, began: time.Now()}
}

// Done records the call's outcome and latency
func (c *Call) Done(outcome string) {
	c.m.RecordBridgeCall(c.method, outcome, time.Since(c.began))
}
