// Package tracing provides request-scoped span trees for timing the
// search pipeline. Spans travel through context and nest parent to child;
// finished trees are emitted as structured slog records at debug level.
// It is in-process only, with no wire propagation of trace context.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type spanKey struct{}

// Span is one timed operation in a request trace. StartChildSpan hangs
// children off it to form a tree; SetAttr attaches metadata that survives
// into the log output.
type Span struct {
	name    string
	traceID string
	start   time.Time
	elapsed time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    []any
}

// StartSpan opens a root span and stores it in the returned context. The
// trace id ties emitted records back to the request; the middleware
// request id is the usual choice.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	s := &Span{name: name, traceID: traceID, start: time.Now()}
	return context.WithValue(ctx, spanKey{}, s), s
}

// StartChildSpan opens a span nested under the one in ctx. Without a
// parent it behaves like a root span with an empty trace id.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{name: name, start: time.Now()}
	if parent := SpanFromContext(ctx); parent != nil {
		s.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	}
	return context.WithValue(ctx, spanKey{}, s), s
}

// SpanFromContext returns the innermost span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// End fixes the span's elapsed time. Later calls keep the first reading.
func (s *Span) End() {
	if s.elapsed == 0 {
		s.elapsed = time.Since(s.start)
	}
}

// Elapsed returns the time between start and End, or zero before End.
func (s *Span) Elapsed() time.Duration {
	return s.elapsed
}

// SetAttr attaches a key-value pair to the span. Attributes keep their
// insertion order in the log output.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Log emits the span and its subtree as debug records, one per span.
// Durations are fractional milliseconds; a search routinely finishes in
// well under one.
func (s *Span) Log() {
	s.log(0)
}

func (s *Span) log(depth int) {
	fields := []any{
		"trace_id", s.traceID,
		"span", s.name,
		"elapsed_ms", float64(s.elapsed.Microseconds()) / 1000,
		"depth", depth,
	}
	s.mu.Lock()
	fields = append(fields, s.attrs...)
	children := s.children
	s.mu.Unlock()
	slog.Debug("span", fields...)
	for _, child := range children {
		child.log(depth + 1)
	}
}
