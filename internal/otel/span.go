// Package otel holds the tracing helpers shared by the save path and the local API.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on save and store spans
const (
	AttrDocumentID   = attribute.Key("document.id")
	AttrContentType  = attribute.Key("document.content_type")
	AttrPayloadBytes = attribute.Key("document.payload_bytes")
	AttrWriteTrigger = attribute.Key("save.trigger")
	AttrAttempts     = attribute.Key("save.attempts")
	AttrStoreType    = attribute.Key("store.type")
	AttrRecordVer    = attribute.Key("store.record_version")
)

// StartSpan starts a span on tracer. With a nil tracer it returns ctx and a
// non-recording span, so callers need no tracing-enabled checks and ending
// the span never ends a parent span carried by ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed. Nil span or err is a no-op.
// The status description stays generic; payload fragments must not leak into it.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
