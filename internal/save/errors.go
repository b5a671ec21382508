package save

import (
	"errors"
	"fmt"
)

var (
	// ErrWriteFailed is wrapped by every error caused by a rejected store write
	ErrWriteFailed = errors.New("document write failed")

	// ErrDisposeFlushFailed is returned by Dispose when the final flush failed
	ErrDisposeFlushFailed = errors.New("final flush on dispose failed")

	// ErrDisposed is returned by SaveNow once the coordinator has been disposed
	ErrDisposed = errors.New("save coordinator disposed")
)

// WriteError describes a store write that failed after all attempts
type WriteError struct {
	DocumentID string
	Attempts   int
	Err        error
}

// Error implements error
func (e *WriteError) Error() string {
	return fmt.Sprintf("write of document '%s' failed after %d attempt(s): %v", e.DocumentID, e.Attempts, e.Err)
}

// Unwrap exposes both ErrWriteFailed and the store error to errors.Is/As
func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}

// failureReason extracts the message shown to the user for a failed write
func failureReason(err error) string {
	var we *WriteError
	if errors.As(err, &we) && we.Err != nil {
		return we.Err.Error()
	}
	return err.Error()
}
