package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		grain    string
		fallback string
		want     slog.Level
	}{
		{name: "unset", want: slog.LevelInfo},
		{name: "prefixed variable", grain: "debug", want: slog.LevelDebug},
		{name: "fallback variable", fallback: "error", want: slog.LevelError},
		{name: "prefixed wins", grain: "warn", fallback: "error", want: slog.LevelWarn},
		{name: "warning alias", grain: "WARNING", want: slog.LevelWarn},
		{name: "invalid value", grain: "loud", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GRAIN_LOG_LEVEL", tt.grain)
			t.Setenv("LOG_LEVEL", tt.fallback)
			assert.Equal(t, tt.want, getLogLevel())
		})
	}
}

func TestTraceHandler_AddsSpanContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)}).With("component", "test")

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	span.End()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
	assert.Equal(t, "test", record["component"])

	buf.Reset()
	logger.Info("outside span")
	var plain map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &plain))
	_, hasTrace := plain["trace_id"]
	assert.False(t, hasTrace)
}
