package save

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/grain-editor/grain-shell/internal/clock"
	"github.com/grain-editor/grain-shell/internal/pending"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/telemetry"
	"github.com/grain-editor/grain-shell/internal/timer"
)

//go:generate mockgen -destination=mocks/mock_save.go -package=mocks -source=coordinator.go Store,Journal

// Store persists document payloads
type Store interface {
	// Write persists payload as the content of documentID. Writing the same
	// payload twice must be harmless.
	Write(ctx context.Context, documentID, payload string) error
}

// Journal keeps payloads whose final flush failed so they can be replayed later
type Journal interface {
	// RecordFailedFlush stores payload together with the error that prevented its write
	RecordFailedFlush(ctx context.Context, documentID, payload string, cause error) error
}

// State is the lifecycle state of a Coordinator
type State string

const (
	// StateClean means everything the coordinator saw is persisted
	StateClean State = "Clean"

	// StateDirty means the buffer holds a payload that is not persisted yet
	StateDirty State = "Dirty"

	// StateWriting means a store write is in flight
	StateWriting State = "Writing"

	// StateError means the last write failed; the payload is still buffered
	StateError State = "Error"

	// StateDisposed is terminal; the coordinator accepts no more work
	StateDisposed State = "Disposed"
)

// Outcome summarises what a SaveNow or Dispose call did
type Outcome string

const (
	// OutcomeSaved means a write succeeded
	OutcomeSaved Outcome = "Saved"

	// OutcomeClean means there was nothing to write
	OutcomeClean Outcome = "Clean"

	// OutcomeFailed means the write failed; Err says why
	OutcomeFailed Outcome = "Failed"

	// OutcomeDisposed means the coordinator was already disposed
	OutcomeDisposed Outcome = "Disposed"

	// OutcomeCanceled means the caller's context ended before the awaited write completed
	OutcomeCanceled Outcome = "Canceled"
)

// Result is returned by SaveNow and Dispose instead of an error so callers
// never need to treat an expected store failure as exceptional.
type Result struct {
	Outcome Outcome
	Err     error
}

// OK reports whether the call left nothing unsaved behind
func (r Result) OK() bool {
	return r.Outcome == OutcomeSaved || r.Outcome == OutcomeClean
}

// Trigger names what started a write
type Trigger string

const (
	// TriggerDebounce is an automatic write after the quiet period
	TriggerDebounce Trigger = "debounce"

	// TriggerManual is a SaveNow call
	TriggerManual Trigger = "manual"

	// TriggerDispose is the final flush
	TriggerDispose Trigger = "dispose"
)

// writeRun is one execution of the write loop. Callers that arrive while it
// is running wait on done and read result afterwards.
type writeRun struct {
	done   chan struct{}
	result Result
}

// Coordinator coordinates the writes of a single document
type Coordinator struct {
	documentID string
	store      Store
	cfg        Config
	clock      clock.Clock
	journal    Journal
	metrics    *telemetry.SaveMetrics
	tracer     trace.Tracer

	debounce *timer.Debouncer
	throttle *timer.Throttler

	mu          sync.Mutex
	buffer      *pending.Buffer
	state       State
	run         *writeRun
	followUp    bool
	lastWritten string
	hasBaseline bool
	updates     int64
	disposed    bool
	disposeDone chan struct{}
	disposeRes  Result

	// sinkMu serialises notifications and guards sink so Dispose can detach
	// it without racing an event in progress.
	sinkMu      sync.Mutex
	sink        status.Sink
	lastEmitted status.Kind
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithClock sets the clock driving the debounce and throttle timers
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// WithSink sets the sink receiving status events
func WithSink(s status.Sink) Option {
	return func(co *Coordinator) {
		co.sink = s
	}
}

// WithJournal sets the journal receiving payloads whose final flush failed
func WithJournal(j Journal) Option {
	return func(co *Coordinator) {
		co.journal = j
	}
}

// WithSaveMetrics sets the save metrics for the coordinator
func WithSaveMetrics(metrics *telemetry.SaveMetrics) Option {
	return func(co *Coordinator) {
		co.metrics = metrics
	}
}

// WithTracer sets the tracer used for write spans
func WithTracer(tracer trace.Tracer) Option {
	return func(co *Coordinator) {
		co.tracer = tracer
	}
}

// New creates a clean coordinator for documentID
func New(documentID string, store Store, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		documentID: documentID,
		store:      store,
		cfg:        cfg.withDefaults(),
		clock:      clock.Real(),
		buffer:     pending.NewBuffer(documentID),
		state:      StateClean,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.debounce = timer.NewDebouncer(c.clock, c.cfg.DebounceInterval, c.onDebounce)
	c.throttle = timer.NewThrottler(c.clock, c.cfg.StatusThrottle, c.announceUnsaved)

	return c
}

// DocumentID returns the document this coordinator writes
func (c *Coordinator) DocumentID() string {
	return c.documentID
}

// SetBaseline records payload as already persisted without writing it.
// A later update back to this payload needs no store write.
func (c *Coordinator) SetBaseline(payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastWritten = payload
	c.hasBaseline = true
}

// Update replaces the buffered payload. It never blocks on I/O and is a
// no-op once the coordinator is disposed.
func (c *Coordinator) Update(payload string) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		slog.Debug("Ignoring update for disposed document", "document", c.documentID)
		return
	}
	c.buffer.Update(payload)
	c.updates++
	if c.state == StateClean {
		c.state = StateDirty
	}
	c.mu.Unlock()

	c.throttle.Trigger()
	if !c.cfg.DisableAutoSave {
		c.debounce.Schedule()
	}
}

// SaveNow cancels the pending automatic write and writes immediately. When
// a write is already in flight it requests one follow-up write and waits for
// it instead of writing concurrently.
func (c *Coordinator) SaveNow(ctx context.Context) Result {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return Result{Outcome: OutcomeDisposed, Err: ErrDisposed}
	}
	c.debounce.Cancel()
	run, owner := c.requestWriteLocked()
	c.mu.Unlock()

	if owner {
		c.execute(ctx, run, TriggerManual)
		return run.result
	}

	select {
	case <-run.done:
		return run.result
	case <-ctx.Done():
		return Result{Outcome: OutcomeCanceled, Err: ctx.Err()}
	}
}

// Dispose stops both timers, detaches the sink, waits for an in-flight write
// and flushes the buffer once more if it is still dirty. It is safe to call
// more than once; later calls wait for and return the first call's result.
func (c *Coordinator) Dispose(ctx context.Context) Result {
	c.mu.Lock()
	if c.disposed {
		done := c.disposeDone
		c.mu.Unlock()
		select {
		case <-done:
			return c.disposeRes
		case <-ctx.Done():
			return Result{Outcome: OutcomeCanceled, Err: ctx.Err()}
		}
	}
	c.disposed = true
	c.disposeDone = make(chan struct{})
	run := c.run
	c.mu.Unlock()

	c.debounce.Stop()
	c.throttle.Stop()

	c.sinkMu.Lock()
	c.sink = nil
	c.sinkMu.Unlock()

	res := c.finalFlush(ctx, run)

	c.mu.Lock()
	c.state = StateDisposed
	c.disposeRes = res
	close(c.disposeDone)
	c.mu.Unlock()

	return res
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return StateDisposed
	}
	return c.state
}

// HasUnsavedChanges reports whether the buffer holds a payload that differs
// from the last persisted one.
func (c *Coordinator) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, dirty := c.buffer.Peek()
	if !dirty {
		return false
	}
	return !c.hasBaseline || payload != c.lastWritten
}

// PendingPayload returns the buffered payload that still needs writing
func (c *Coordinator) PendingPayload() (string, bool) {
	return c.buffer.Pending()
}

// LastWritten returns the payload most recently confirmed persisted
func (c *Coordinator) LastWritten() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWritten, c.hasBaseline
}

func (c *Coordinator) onDebounce() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	run, owner := c.requestWriteLocked()
	c.mu.Unlock()

	if owner {
		c.execute(context.Background(), run, TriggerDebounce)
	}
}

// announceUnsaved is the throttled Unsaved path. It stays quiet while a
// write is running or after a failure, whose status must not be overwritten.
func (c *Coordinator) announceUnsaved() {
	c.mu.Lock()
	st := c.state
	dirty := c.buffer.Dirty()
	c.mu.Unlock()

	if !dirty || st == StateError || st == StateWriting {
		return
	}
	c.emit(status.Unsaved(c.documentID, c.clock.Now()))
}

// emit delivers ev to the sink. Repeated Unsaved events are collapsed.
func (c *Coordinator) emit(ev status.Event) {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	if c.sink == nil {
		return
	}
	if ev.Kind == status.KindUnsaved && c.lastEmitted == status.KindUnsaved {
		return
	}
	c.lastEmitted = ev.Kind
	c.sink.Notify(ev)
}
