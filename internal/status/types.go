package status

import (
	"fmt"
	"time"
)

// Kind is the save status of a document as shown to the user
type Kind string

const (
	// KindUnsaved means the document has edits that are not persisted yet
	KindUnsaved Kind = "Unsaved"

	// KindSaving means a write is in progress
	KindSaving Kind = "Saving"

	// KindSaved means the last write succeeded and nothing newer is pending
	KindSaved Kind = "Saved"

	// KindError means the last write failed
	KindError Kind = "Error"
)

// Event is a single status transition for a document
type Event struct {
	// DocumentID identifies the document the event belongs to
	DocumentID string `json:"documentId" yaml:"documentId"`

	// Kind is the new status
	Kind Kind `json:"kind" yaml:"kind"`

	// Reason describes the failure for KindError events
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// At is when the coordinator emitted the event
	At time.Time `json:"at" yaml:"at"`
}

// String implements fmt.Stringer
func (e Event) String() string {
	if e.Kind == KindError {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Reason)
	}
	return string(e.Kind)
}

// Unsaved builds a KindUnsaved event
func Unsaved(documentID string, at time.Time) Event {
	return Event{DocumentID: documentID, Kind: KindUnsaved, At: at}
}

// Saving builds a KindSaving event
func Saving(documentID string, at time.Time) Event {
	return Event{DocumentID: documentID, Kind: KindSaving, At: at}
}

// Saved builds a KindSaved event
func Saved(documentID string, at time.Time) Event {
	return Event{DocumentID: documentID, Kind: KindSaved, At: at}
}

// Failed builds a KindError event carrying reason
func Failed(documentID string, at time.Time, reason string) Event {
	return Event{DocumentID: documentID, Kind: KindError, Reason: reason, At: at}
}

// DocumentStatus is the latest known status of a document
type DocumentStatus struct {
	// Kind is the latest status
	Kind Kind `json:"kind"`

	// Reason provides the failure reason when Kind is KindError
	Reason string `json:"reason,omitempty"`

	// UpdatedAt is the time of the latest event
	UpdatedAt time.Time `json:"updatedAt"`

	// LastSavedAt is the time of the latest successful write
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`

	// FailureCount is the number of failed writes since the last success
	FailureCount int `json:"failureCount,omitempty"`
}
