package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/grain-editor/grain-shell/internal/otel"
)

const (
	// StoreTracerName is the name used for the SQL store tracers
	StoreTracerName = "github.com/grain-editor/grain-shell/store"
)

// Option configures the SQL stores
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracer sets the OpenTelemetry tracer for store operations.
// If not set, tracing is disabled.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// startSpan starts a span for a store operation tagged with the database system
func startSpan(
	ctx context.Context,
	tracer trace.Tracer,
	system attribute.KeyValue,
	name, documentID string,
) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, tracer, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(system, otel.AttrDocumentID.String(documentID)),
	)
}

var (
	dbSystemSQLite   = semconv.DBSystemSqlite
	dbSystemPostgres = semconv.DBSystemPostgreSQL
)
