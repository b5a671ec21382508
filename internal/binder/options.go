package binder

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/grain-editor/grain-shell/internal/clock"
	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/keymap"
	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/telemetry"
)

// Option is a function that configures the registry
type Option func(*Registry)

// WithSaveConfig sets the save policy of every coordinator
func WithSaveConfig(cfg save.Config) Option {
	return func(r *Registry) {
		r.saveCfg = cfg
	}
}

// WithClock sets the clock handed to every coordinator
func WithClock(c clock.Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithBoard sets the board that records the status of every document
func WithBoard(b *status.Board) Option {
	return func(r *Registry) {
		r.board = b
	}
}

// WithJournal sets the journal receiving payloads whose final flush failed
func WithJournal(j save.Journal) Option {
	return func(r *Registry) {
		r.journal = j
	}
}

// WithValidator sets the payload validator
func WithValidator(v *content.Validator) Option {
	return func(r *Registry) {
		r.validator = v
	}
}

// WithKeymap sets the shortcut manager views bind their save chords on
func WithKeymap(m *keymap.Manager) Option {
	return func(r *Registry) {
		r.keymap = m
	}
}

// WithSaveMetrics sets the save metrics passed to every coordinator
func WithSaveMetrics(m *telemetry.SaveMetrics) Option {
	return func(r *Registry) {
		r.saveMetrics = m
	}
}

// WithDocumentMetrics sets the metrics for open documents and views
func WithDocumentMetrics(m *telemetry.DocumentMetrics) Option {
	return func(r *Registry) {
		r.docMetrics = m
	}
}

// WithTracer sets the tracer used for coordinator write spans
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = t
	}
}

// AttachOption configures a single Attach call
type AttachOption func(*attachOptions)

type attachOptions struct {
	contentType content.Type
	sink        status.Sink
}

// WithContentType declares the content type of the view. It must match the
// type stored for an existing document.
func WithContentType(t content.Type) AttachOption {
	return func(o *attachOptions) {
		o.contentType = t
	}
}

// WithStatusSink subscribes sink to the document's status events while the view is attached
func WithStatusSink(sink status.Sink) AttachOption {
	return func(o *attachOptions) {
		o.sink = sink
	}
}
