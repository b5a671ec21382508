package save

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/grain-editor/grain-shell/internal/clock"
	"github.com/grain-editor/grain-shell/internal/otel"
	"github.com/grain-editor/grain-shell/internal/status"
)

// requestWriteLocked starts a write run, or marks the running one to write
// once more when it completes. The second return value tells the caller
// whether it started the run and must execute it.
func (c *Coordinator) requestWriteLocked() (*writeRun, bool) {
	if c.run != nil {
		c.followUp = true
		return c.run, false
	}
	c.run = &writeRun{done: make(chan struct{})}
	return c.run, true
}

// execute performs writes until no follow-up is requested, then publishes
// the result to everyone waiting on run.
func (c *Coordinator) execute(ctx context.Context, run *writeRun, trigger Trigger) {
	// The write outlives a caller that stops waiting; others may be waiting on it.
	ctx = context.WithoutCancel(ctx)

	finished := false
	defer func() {
		if !finished {
			// performWrite panicked; leave the coordinator usable
			c.mu.Lock()
			if c.run == run {
				c.run = nil
			}
			c.followUp = false
			c.state = StateError
			c.mu.Unlock()
			run.result = Result{Outcome: OutcomeFailed, Err: ErrWriteFailed}
		}
		close(run.done)
	}()

	res := Result{Outcome: OutcomeClean}
	for {
		next := c.performWrite(ctx, trigger)
		// a clean follow-up must not hide the write that preceded it
		if next.Outcome != OutcomeClean {
			res = next
		}

		c.mu.Lock()
		if !c.followUp {
			c.run = nil
			c.mu.Unlock()
			break
		}
		c.followUp = false
		c.mu.Unlock()
	}

	run.result = res
	finished = true
}

// performWrite writes the buffered payload if it still needs writing
func (c *Coordinator) performWrite(ctx context.Context, trigger Trigger) Result {
	c.mu.Lock()
	payload, dirty := c.buffer.Peek()
	if !dirty {
		c.mu.Unlock()
		return Result{Outcome: OutcomeClean}
	}
	if c.hasBaseline && payload == c.lastWritten {
		c.buffer.MarkClean(payload)
		c.state = StateClean
		c.updates = 0
		c.mu.Unlock()

		slog.Debug("Buffered payload matches persisted content, skipping write", "document", c.documentID)
		c.emit(status.Saved(c.documentID, c.clock.Now()))
		return Result{Outcome: OutcomeClean}
	}
	c.state = StateWriting
	coalesced := c.updates - 1
	c.updates = 0
	c.mu.Unlock()

	c.emit(status.Saving(c.documentID, c.clock.Now()))
	c.metrics.RecordCoalesced(ctx, coalesced)

	start := c.clock.Now()
	err := c.write(ctx, payload, trigger)
	duration := clock.Since(c.clock, start)

	if err != nil {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()

		c.metrics.RecordWrite(ctx, string(trigger), duration, false)
		slog.Warn("Document write failed",
			"document", c.documentID,
			"trigger", trigger,
			"error", err)
		c.emit(status.Failed(c.documentID, c.clock.Now(), failureReason(err)))
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	c.mu.Lock()
	c.lastWritten = payload
	c.hasBaseline = true
	clean := c.buffer.MarkClean(payload)
	if clean {
		c.state = StateClean
	} else {
		c.state = StateDirty
	}
	c.mu.Unlock()

	c.metrics.RecordWrite(ctx, string(trigger), duration, true)
	slog.Debug("Document written",
		"document", c.documentID,
		"trigger", trigger,
		"bytes", len(payload),
		"duration", duration)
	c.emit(status.Saved(c.documentID, c.clock.Now()))

	if !clean {
		// an update raced in during the write
		c.throttle.Trigger()
	}
	return Result{Outcome: OutcomeSaved}
}

// write calls the store under the write timeout, retrying with exponential
// backoff up to MaxWriteAttempts times. Both the timeout and the delays
// between attempts run on the coordinator's clock.
func (c *Coordinator) write(ctx context.Context, payload string, trigger Trigger) error {
	ctx, span := otel.StartSpan(ctx, c.tracer, "save.write",
		trace.WithAttributes(
			otel.AttrDocumentID.String(c.documentID),
			otel.AttrPayloadBytes.Int(len(payload)),
			otel.AttrWriteTrigger.String(string(trigger)),
		),
	)
	defer span.End()

	b := c.newBackOff()
	attempts := 0
	var err error
	for {
		attempts++
		if err = c.writeAttempt(ctx, payload); err == nil {
			break
		}
		if attempts >= c.cfg.MaxWriteAttempts {
			break
		}
		next := b.NextBackOff()
		if next == backoff.Stop {
			break
		}
		slog.Warn("Retrying document write",
			"document", c.documentID,
			"attempt", attempts,
			"retry_in", next,
			"error", err)
		if werr := c.sleep(ctx, next); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	span.SetAttributes(otel.AttrAttempts.Int(attempts))
	if err != nil {
		werr := &WriteError{DocumentID: c.documentID, Attempts: attempts, Err: err}
		otel.RecordError(span, werr)
		return werr
	}
	return nil
}

// writeAttempt makes one store call, canceled once WriteTimeout elapses
func (c *Coordinator) writeAttempt(ctx context.Context, payload string) error {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	timeout := c.clock.AfterFunc(c.cfg.WriteTimeout, func() {
		cancel(context.DeadlineExceeded)
	})
	defer timeout.Stop()

	err := c.store.Write(attemptCtx, c.documentID, payload)
	if err != nil && errors.Is(context.Cause(attemptCtx), context.DeadlineExceeded) {
		return fmt.Errorf("write timed out after %s: %w: %w", c.cfg.WriteTimeout, context.DeadlineExceeded, err)
	}
	return err
}

// sleep waits d on the coordinator's clock
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	elapsed := make(chan struct{})
	t := c.clock.AfterFunc(d, func() { close(elapsed) })
	defer t.Stop()

	select {
	case <-elapsed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	b.MaxInterval = maxRetryInterval
	return b
}

// finalFlush waits for run, if any, and writes the buffer one last time
func (c *Coordinator) finalFlush(ctx context.Context, run *writeRun) Result {
	if run != nil {
		select {
		case <-run.done:
		case <-ctx.Done():
			err := fmt.Errorf("%w: gave up waiting for in-flight write: %w", ErrDisposeFlushFailed, ctx.Err())
			c.recordFlushFailure(ctx, err)
			return Result{Outcome: OutcomeFailed, Err: err}
		}
	}

	c.mu.Lock()
	payload, dirty := c.buffer.Peek()
	unchanged := c.hasBaseline && payload == c.lastWritten
	c.mu.Unlock()

	if !dirty || unchanged {
		return Result{Outcome: OutcomeClean}
	}

	start := c.clock.Now()
	err := c.write(ctx, payload, TriggerDispose)
	c.metrics.RecordWrite(ctx, string(TriggerDispose), clock.Since(c.clock, start), err == nil)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDisposeFlushFailed, err)
		c.recordFlushFailure(ctx, err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	c.mu.Lock()
	c.lastWritten = payload
	c.hasBaseline = true
	c.buffer.MarkClean(payload)
	c.mu.Unlock()

	slog.Debug("Flushed document on dispose", "document", c.documentID)
	return Result{Outcome: OutcomeSaved}
}

// recordFlushFailure logs a failed final flush and hands the payload to the journal
func (c *Coordinator) recordFlushFailure(ctx context.Context, err error) {
	payload, ok := c.buffer.Pending()
	slog.Error("Unsaved changes could not be flushed",
		"document", c.documentID,
		"bytes", len(payload),
		"error", err)
	c.metrics.RecordFlushFailure(ctx)

	if c.journal == nil || !ok {
		return
	}
	if jerr := c.journal.RecordFailedFlush(context.WithoutCancel(ctx), c.documentID, payload, err); jerr != nil {
		slog.Error("Failed to journal unsaved changes",
			"document", c.documentID,
			"error", jerr)
		return
	}
	slog.Warn("Unsaved changes kept in recovery journal", "document", c.documentID)
}
