package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
	"go.uber.org/zap"
)

const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"

	queueSize = 1024
)

type (
	TraceID string
	SpanID  string
)

// link is the trace position carried in a context
type link struct {
	trace TraceID
	span  SpanID
}

type (
	linkKey   struct{}
	tracerKey struct{}
)

// Tracer hands finished spans to a background writer that logs them
type Tracer struct {
	service string
	log     *zap.Logger
	queue   chan *Span

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New starts a tracer. A nil logger discards spans.
func New(service string, log *zap.Logger) *Tracer {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		log:     log,
		queue:   make(chan *Span, queueSize),
		done:    make(chan struct{}),
	}
	go t.drain()
	return t
}

// Span times one operation. A nil *Span is valid and does nothing.
type Span struct {
	Trace  TraceID
	ID     SpanID
	Parent SpanID
	Name   string

	tracer  *Tracer
	started time.Time
	elapsed time.Duration
	status  int
	err     error
	fields  []zap.Field
}

// Start opens a span, continuing the trace found in ctx or starting one.
// The returned context carries the span and the tracer, so Child works
// further down the call chain.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	parent, _ := ctx.Value(linkKey{}).(link)
	if parent.trace == "" {
		parent.trace = TraceID(id.New(id.KindTrace))
	}

	s := &Span{
		Trace:   parent.trace,
		ID:      SpanID(id.New(id.KindSpan)),
		Parent:  parent.span,
		Name:    name,
		tracer:  t,
		started: time.Now(),
	}
	ctx = context.WithValue(ctx, linkKey{}, link{trace: s.Trace, span: s.ID})
	ctx = context.WithValue(ctx, tracerKey{}, t)
	return ctx, s
}

// Child opens a span under whatever trace ctx carries. Without a tracer in
// ctx it returns ctx unchanged and a nil span.
func Child(ctx context.Context, name string) (context.Context, *Span) {
	t, ok := ctx.Value(tracerKey{}).(*Tracer)
	if !ok {
		return ctx, nil
	}
	return t.Start(ctx, name)
}

// Annotate attaches log fields to the span
func (s *Span) Annotate(fields ...zap.Field) {
	if s == nil {
		return
	}
	s.fields = append(s.fields, fields...)
}

// SetStatus records an HTTP status
func (s *Span) SetStatus(code int) {
	if s == nil {
		return
	}
	s.status = code
}

// End closes the span with the operation's outcome and queues it
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	s.elapsed = time.Since(s.started)
	s.err = err
	s.tracer.submit(s)
}

func (t *Tracer) submit(s *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- s:
	default:
		t.log.Warn("trace queue full, dropping span",
			zap.String("trace", string(s.Trace)),
			zap.String("name", s.Name))
	}
}

func (t *Tracer) drain() {
	defer close(t.done)
	for s := range t.queue {
		t.write(s)
	}
}

func (t *Tracer) write(s *Span) {
	fields := append([]zap.Field{
		zap.String("service", t.service),
		zap.String("trace", string(s.Trace)),
		zap.String("span", string(s.ID)),
		zap.String("name", s.Name),
		zap.Duration("elapsed", s.elapsed),
	}, s.fields...)
	if s.Parent != "" {
		fields = append(fields, zap.String("parent", string(s.Parent)))
	}
	if s.status != 0 {
		fields = append(fields, zap.Int("status", s.status))
	}

	if s.err != nil {
		t.log.Warn("span failed", append(fields, zap.Error(s.err))...)
		return
	}
	t.log.Debug("span", fields...)
}

// Close flushes queued spans. Spans ending afterwards are discarded.
func (t *Tracer) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()
	<-t.done
}

// FromContext returns the trace and innermost span ids carried by ctx
func FromContext(ctx context.Context) (TraceID, SpanID) {
	l, _ := ctx.Value(linkKey{}).(link)
	return l.trace, l.span
}

// Continue makes spans started from ctx join a trace begun elsewhere
func Continue(ctx context.Context, trace TraceID, parent SpanID) context.Context {
	if trace == "" {
		return ctx
	}
	return context.WithValue(ctx, linkKey{}, link{trace: trace, span: parent})
}
