package apm

import (
	"context"
	"sync"

	"github.com/mongodb/docshift"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/mongodb/docshift/apm"
	throttledAttribute = "docshift.throttled"
	replyBytesKey      = "db.response_bytes"
)

type spanKey struct {
	connectionID string
	requestID    int64
}

type tracingMonitor struct {
	tracer trace.Tracer
	spans  map[spanKey]trace.Span
	mu     sync.Mutex
}

// NewTracingMonitor starts a client span for every driver command.
// Failed spans record whether the server rejected the command for
// exceeding its request rate. A nil provider uses the global one.
func NewTracingMonitor(provider trace.TracerProvider) *event.CommandMonitor {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	m := &tracingMonitor{
		tracer: provider.Tracer(tracerName),
		spans:  make(map[spanKey]trace.Span),
	}

	return &event.CommandMonitor{
		Started:   m.started,
		Succeeded: m.succeeded,
		Failed:    m.failed,
	}
}

func (m *tracingMonitor) started(ctx context.Context, e *event.CommandStartedEvent) {
	name := e.CommandName
	attrs := []attribute.KeyValue{
		semconv.DBSystemMongoDB,
		semconv.DBName(e.DatabaseName),
		semconv.DBOperation(e.CommandName),
	}

	if arg, err := e.Command.LookupErr(e.CommandName); err == nil {
		if coll, ok := arg.StringValueOK(); ok && coll != "" {
			name = coll + "." + name
			attrs = append(attrs, semconv.DBMongoDBCollection(coll))
		}
	}

	_, span := m.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)

	m.mu.Lock()
	m.spans[spanKey{connectionID: e.ConnectionID, requestID: e.RequestID}] = span
	m.mu.Unlock()
}

func (m *tracingMonitor) pop(e *event.CommandFinishedEvent) (trace.Span, bool) {
	key := spanKey{connectionID: e.ConnectionID, requestID: e.RequestID}

	m.mu.Lock()
	defer m.mu.Unlock()

	span, ok := m.spans[key]
	delete(m.spans, key)
	return span, ok
}

func (m *tracingMonitor) succeeded(_ context.Context, e *event.CommandSucceededEvent) {
	span, ok := m.pop(&e.CommandFinishedEvent)
	if !ok {
		return
	}

	span.SetAttributes(attribute.Int(replyBytesKey, len(e.Reply)))
	span.End()
}

func (m *tracingMonitor) failed(_ context.Context, e *event.CommandFailedEvent) {
	span, ok := m.pop(&e.CommandFinishedEvent)
	if !ok {
		return
	}

	span.SetAttributes(attribute.Bool(throttledAttribute, docshift.IsThrottled(e.Failure)))
	if e.Failure != nil {
		span.SetStatus(codes.Error, e.Failure.Error())
	} else {
		span.SetStatus(codes.Error, "command failed")
	}
	span.End()
}
