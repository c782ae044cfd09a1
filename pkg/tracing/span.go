// Package tracing records lightweight span trees in a context. A finished
// tree can be logged as one structured slog attribute.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is one timed operation. Children are appended by StartChild.
type Span struct {
	Name    string
	TraceID string
	Start   time.Time

	mu       sync.Mutex
	duration time.Duration
	ended    bool
	children []*Span
	attrs    []slog.Attr
}

// StartSpan opens a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{Name: name, TraceID: traceID, Start: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChild opens a span under the one in ctx. Without a parent it behaves
// like StartSpan with an empty trace id.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return StartSpan(ctx, name, "")
	}
	child := &Span{Name: name, TraceID: parent.TraceID, Start: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// FromContext returns the current span or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// End fixes the span's duration. Later calls are ignored.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.duration = time.Since(s.Start)
		s.ended = true
	}
}

// Duration returns the measured duration, or the elapsed time while open.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.duration
	}
	return time.Since(s.Start)
}

// SetAttr attaches a key-value attribute.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Children returns a copy of the direct children.
func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// LogValue renders the tree as nested groups keyed by span name.
func (s *Span) LogValue() slog.Value {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, len(s.attrs)+len(s.children)+1)
	attrs = append(attrs, slog.Int64("duration_ms", s.durationLocked().Milliseconds()))
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	for _, c := range children {
		attrs = append(attrs, slog.Attr{Key: c.Name, Value: c.LogValue()})
	}
	return slog.GroupValue(attrs...)
}

func (s *Span) durationLocked() time.Duration {
	if s.ended {
		return s.duration
	}
	return time.Since(s.Start)
}
