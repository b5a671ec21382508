package v1

import (
	"github.com/grain-editor/grain-shell/internal/binder"
	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/status"
)

// ListDocumentsResponse lists the open documents
type ListDocumentsResponse struct {
	Documents []binder.DocumentInfo `json:"documents"`
}

// AttachRequest is the optional body of an attach request
type AttachRequest struct {
	ContentType string `json:"contentType,omitempty"`
}

// ActivateRequest selects the active document of the workspace
type ActivateRequest struct {
	DocumentID  string `json:"documentId"`
	ContentType string `json:"contentType,omitempty"`
}

// ViewResponse describes an attached view
type ViewResponse struct {
	ViewID      string       `json:"viewId"`
	DocumentID  string       `json:"documentId"`
	ContentType content.Type `json:"contentType"`
}

func newViewResponse(v *binder.View) ViewResponse {
	return ViewResponse{
		ViewID:      v.ID(),
		DocumentID:  v.DocumentID(),
		ContentType: v.ContentType(),
	}
}

// ResultResponse reports the outcome of a save or detach
type ResultResponse struct {
	DocumentID string       `json:"documentId"`
	Outcome    save.Outcome `json:"outcome"`
	Error      string       `json:"error,omitempty"`
}

func newResultResponse(documentID string, res save.Result) ResultResponse {
	resp := ResultResponse{DocumentID: documentID, Outcome: res.Outcome}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

// SaveAllResponse holds one result per open document
type SaveAllResponse struct {
	Results []ResultResponse `json:"results"`
}

// KeyRequest asks the shortcut manager to run the binding of a chord
type KeyRequest struct {
	Chord string `json:"chord"`
}

// KeyResponse reports whether a binding handled the chord
type KeyResponse struct {
	Handled bool `json:"handled"`
}

// StatusResponse holds the latest status of every known document
type StatusResponse struct {
	Documents map[string]status.DocumentStatus `json:"documents"`
}
