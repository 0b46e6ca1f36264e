package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartContinuesTrace(t *testing.T) {
	tracer := New("test", nil)
	defer tracer.Close()

	ctx, root := tracer.Start(context.Background(), "root")
	assert.True(t, strings.HasPrefix(string(root.Trace), "trace_"))
	assert.Empty(t, root.Parent)

	ctx, child := Child(ctx, "child")
	require.NotNil(t, child)
	assert.Equal(t, root.Trace, child.Trace)
	assert.Equal(t, root.ID, child.Parent)

	trace, span := FromContext(ctx)
	assert.Equal(t, root.Trace, trace)
	assert.Equal(t, child.ID, span)
}

func TestChildWithoutTracer(t *testing.T) {
	ctx := context.Background()
	got, span := Child(ctx, "orphan")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)

	// nil spans are inert
	span.Annotate(zap.String("k", "v"))
	span.SetStatus(200)
	span.End(errors.New("ignored"))
}

func TestSpanOutcomeIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", zap.New(core))

	_, good := tracer.Start(context.Background(), "install")
	good.Annotate(zap.String("package", "demo"))
	good.End(nil)
	_, bad := tracer.Start(context.Background(), "install")
	bad.End(errors.New("bad archive"))
	tracer.Close()

	require.Len(t, logs.FilterMessage("span").All(), 1)
	assert.Equal(t, "demo", logs.FilterMessage("span").All()[0].ContextMap()["package"])
	failed := logs.FilterMessage("span failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad archive", failed[0].ContextMap()["error"])
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", zap.New(core))

	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	var seen TraceID
	r.GET("/sources/:id", func(c *gin.Context) {
		seen, _ = FromContext(c.Request.Context())
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/sources/demo", nil)
	req.Header.Set(HeaderTraceID, "trace_upstream")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, TraceID("trace_upstream"), seen)
	assert.Equal(t, "trace_upstream", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderSpanID))

	tracer.Close()
	entries := logs.FilterMessage("span").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /sources/:id", entries[0].ContextMap()["name"])
	assert.Equal(t, int64(http.StatusTeapot), entries[0].ContextMap()["status"])
}

func TestEndAfterClose(t *testing.T) {
	tracer := New("test", nil)
	tracer.Close()
	tracer.Close()

	_, span := tracer.Start(context.Background(), "late")
	span.End(nil)
}
