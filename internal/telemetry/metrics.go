// Package telemetry provides OpenTelemetry instrumentation for grain-shell.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SaveMetricsMeterName is the name used for the save metrics meter
	SaveMetricsMeterName = "github.com/grain-editor/grain-shell/save"

	// DocumentMetricsMeterName is the name used for the open document metrics meter
	DocumentMetricsMeterName = "github.com/grain-editor/grain-shell/documents"
)

// SaveMetrics holds the OpenTelemetry instruments for document writes
type SaveMetrics struct {
	writeDuration  metric.Float64Histogram
	writesTotal    metric.Int64Counter
	coalescedTotal metric.Int64Counter
	flushFailures  metric.Int64Counter
}

// NewSaveMetrics creates a new SaveMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSaveMetrics(provider metric.MeterProvider) (*SaveMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SaveMetricsMeterName)

	writeDuration, err := meter.Float64Histogram(
		"grain_save_write_duration_seconds",
		metric.WithDescription("Duration of document writes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	writesTotal, err := meter.Int64Counter(
		"grain_save_writes_total",
		metric.WithDescription("Total number of document writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, err
	}

	coalescedTotal, err := meter.Int64Counter(
		"grain_save_updates_coalesced_total",
		metric.WithDescription("Number of content updates folded into a later write"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	flushFailures, err := meter.Int64Counter(
		"grain_save_dispose_flush_failures_total",
		metric.WithDescription("Number of failed final flushes while closing a document"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	return &SaveMetrics{
		writeDuration:  writeDuration,
		writesTotal:    writesTotal,
		coalescedTotal: coalescedTotal,
		flushFailures:  flushFailures,
	}, nil
}

// RecordWrite records the outcome and duration of a document write
func (m *SaveMetrics) RecordWrite(ctx context.Context, trigger string, duration time.Duration, success bool) {
	if m == nil || m.writeDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	)

	m.writeDuration.Record(ctx, duration.Seconds(), attrs)
	m.writesTotal.Add(ctx, 1, attrs)
}

// RecordCoalesced records updates that were superseded before being written
func (m *SaveMetrics) RecordCoalesced(ctx context.Context, count int64) {
	if m == nil || m.coalescedTotal == nil || count <= 0 {
		return
	}
	m.coalescedTotal.Add(ctx, count)
}

// RecordFlushFailure records a failed final flush
func (m *SaveMetrics) RecordFlushFailure(ctx context.Context) {
	if m == nil || m.flushFailures == nil {
		return
	}
	m.flushFailures.Add(ctx, 1)
}

// DocumentMetrics holds the OpenTelemetry instruments for open documents
type DocumentMetrics struct {
	openDocuments metric.Int64UpDownCounter
	openViews     metric.Int64UpDownCounter
}

// NewDocumentMetrics creates a new DocumentMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewDocumentMetrics(provider metric.MeterProvider) (*DocumentMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(DocumentMetricsMeterName)

	openDocuments, err := meter.Int64UpDownCounter(
		"grain_documents_open",
		metric.WithDescription("Number of documents with a live save coordinator"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	openViews, err := meter.Int64UpDownCounter(
		"grain_views_open",
		metric.WithDescription("Number of attached editing views"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	return &DocumentMetrics{
		openDocuments: openDocuments,
		openViews:     openViews,
	}, nil
}

// DocumentOpened records a newly created coordinator
func (m *DocumentMetrics) DocumentOpened(ctx context.Context, contentType string) {
	if m == nil || m.openDocuments == nil {
		return
	}
	m.openDocuments.Add(ctx, 1, metric.WithAttributes(attribute.String("content_type", contentType)))
}

// DocumentClosed records a disposed coordinator
func (m *DocumentMetrics) DocumentClosed(ctx context.Context, contentType string) {
	if m == nil || m.openDocuments == nil {
		return
	}
	m.openDocuments.Add(ctx, -1, metric.WithAttributes(attribute.String("content_type", contentType)))
}

// ViewsChanged records views being attached (delta > 0) or detached (delta < 0)
func (m *DocumentMetrics) ViewsChanged(ctx context.Context, delta int64) {
	if m == nil || m.openViews == nil {
		return
	}
	m.openViews.Add(ctx, delta)
}
