// Package v1 provides the document and view endpoints of the local API.
package v1

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grain-editor/grain-shell/internal/api/common"
	"github.com/grain-editor/grain-shell/internal/binder"
	"github.com/grain-editor/grain-shell/internal/content"
	"github.com/grain-editor/grain-shell/internal/save"
	"github.com/grain-editor/grain-shell/internal/status"
	"github.com/grain-editor/grain-shell/internal/store"
)

// Routes handles HTTP requests for documents and views.
type Routes struct {
	registry  *binder.Registry
	contents  store.ContentStore
	board     *status.Board
	workspace *binder.Workspace
}

// Option configures Routes
type Option func(*Routes)

// WithBoard enables the status endpoints backed by b
func WithBoard(b *status.Board) Option {
	return func(routes *Routes) {
		routes.board = b
	}
}

// WithWorkspace enables the workspace endpoints backed by w
func WithWorkspace(w *binder.Workspace) Option {
	return func(routes *Routes) {
		routes.workspace = w
	}
}

// NewRoutes creates a new Routes instance
func NewRoutes(registry *binder.Registry, contents store.ContentStore, opts ...Option) *Routes {
	routes := &Routes{
		registry: registry,
		contents: contents,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates the router for the v1 endpoints
func Router(registry *binder.Registry, contents store.ContentStore, opts ...Option) http.Handler {
	routes := NewRoutes(registry, contents, opts...)

	r := chi.NewRouter()

	r.Get("/documents", routes.listDocuments)
	r.Post("/documents/save", routes.saveAll)
	r.Route("/documents/{documentID}", func(r chi.Router) {
		r.Post("/views", routes.attachView)
		r.Get("/content", routes.getContent)
		r.Get("/events", routes.streamEvents)
	})
	r.Route("/views/{viewID}", func(r chi.Router) {
		r.Put("/content", routes.updateContent)
		r.Post("/save", routes.saveView)
		r.Delete("/", routes.detachView)
	})
	r.Post("/keys", routes.dispatchKey)
	r.Get("/status", routes.listStatus)
	r.Put("/workspace/active", routes.activate)
	r.Delete("/workspace/active", routes.deactivate)

	return r
}

// listDocuments handles GET /api/v1/documents
func (routes *Routes) listDocuments(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, ListDocumentsResponse{Documents: routes.registry.Documents()}, http.StatusOK)
}

// attachView handles POST /api/v1/documents/{documentID}/views
func (routes *Routes) attachView(w http.ResponseWriter, r *http.Request) {
	documentID, err := common.GetAndValidateURLParam(r, "documentID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AttachRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := attachOptions(req.ContentType)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := routes.registry.Attach(r.Context(), documentID, opts...)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), attachErrorStatus(err))
		return
	}
	common.WriteJSONResponse(w, newViewResponse(v), http.StatusCreated)
}

// getContent handles GET /api/v1/documents/{documentID}/content
func (routes *Routes) getContent(w http.ResponseWriter, r *http.Request) {
	documentID, err := common.GetAndValidateURLParam(r, "documentID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := routes.contents.Load(r.Context(), documentID)
	if errors.Is(err, store.ErrNotFound) {
		common.WriteErrorResponse(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load document", "document", documentID, "error", err)
		common.WriteErrorResponse(w, "Failed to load document", http.StatusInternalServerError)
		return
	}
	common.WriteJSONResponse(w, rec, http.StatusOK)
}

// updateContent handles PUT /api/v1/views/{viewID}/content. The request
// body is the new payload.
func (routes *Routes) updateContent(w http.ResponseWriter, r *http.Request) {
	v, ok := routes.lookupView(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, content.MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteErrorResponse(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		common.WriteErrorResponse(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if err := v.OnChange(string(body), true); err != nil {
		switch {
		case errors.Is(err, content.ErrInvalidPayload):
			common.WriteErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, binder.ErrViewDetached):
			common.WriteErrorResponse(w, err.Error(), http.StatusGone)
		default:
			common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveView handles POST /api/v1/views/{viewID}/save
func (routes *Routes) saveView(w http.ResponseWriter, r *http.Request) {
	v, ok := routes.lookupView(w, r)
	if !ok {
		return
	}
	res := v.SaveNow(r.Context())
	common.WriteJSONResponse(w, newResultResponse(v.DocumentID(), res), resultStatus(res))
}

// detachView handles DELETE /api/v1/views/{viewID}
func (routes *Routes) detachView(w http.ResponseWriter, r *http.Request) {
	v, ok := routes.lookupView(w, r)
	if !ok {
		return
	}
	res := v.Detach(r.Context())
	common.WriteJSONResponse(w, newResultResponse(v.DocumentID(), res), resultStatus(res))
}

// saveAll handles POST /api/v1/documents/save
func (routes *Routes) saveAll(w http.ResponseWriter, r *http.Request) {
	results, err := routes.registry.SaveAll(r.Context())

	resp := SaveAllResponse{Results: make([]ResultResponse, 0, len(results))}
	for _, doc := range routes.registry.Documents() {
		if res, ok := results[doc.ID]; ok {
			resp.Results = append(resp.Results, newResultResponse(doc.ID, res))
		}
	}

	code := http.StatusOK
	if err != nil {
		slog.Warn("Save all left documents unsaved", "error", err)
		code = http.StatusInternalServerError
	}
	common.WriteJSONResponse(w, resp, code)
}

// dispatchKey handles POST /api/v1/keys
func (routes *Routes) dispatchKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	handled, err := routes.registry.Keymap().Dispatch(r.Context(), req.Chord)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	common.WriteJSONResponse(w, KeyResponse{Handled: handled}, http.StatusOK)
}

// listStatus handles GET /api/v1/status
func (routes *Routes) listStatus(w http.ResponseWriter, _ *http.Request) {
	if routes.board == nil {
		common.WriteErrorResponse(w, "Status board is not enabled", http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, StatusResponse{Documents: routes.board.Snapshot()}, http.StatusOK)
}

// activate handles PUT /api/v1/workspace/active
func (routes *Routes) activate(w http.ResponseWriter, r *http.Request) {
	if routes.workspace == nil {
		common.WriteErrorResponse(w, "Workspace is not enabled", http.StatusNotFound)
		return
	}

	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := attachOptions(req.ContentType)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, err := routes.workspace.Activate(r.Context(), req.DocumentID, opts...)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), attachErrorStatus(err))
		return
	}
	common.WriteJSONResponse(w, newViewResponse(v), http.StatusOK)
}

// deactivate handles DELETE /api/v1/workspace/active
func (routes *Routes) deactivate(w http.ResponseWriter, r *http.Request) {
	if routes.workspace == nil {
		common.WriteErrorResponse(w, "Workspace is not enabled", http.StatusNotFound)
		return
	}
	active, ok := routes.workspace.Active()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	res := routes.workspace.Deactivate(r.Context())
	common.WriteJSONResponse(w, newResultResponse(active.DocumentID(), res), resultStatus(res))
}

func (routes *Routes) lookupView(w http.ResponseWriter, r *http.Request) (*binder.View, bool) {
	viewID, err := common.GetAndValidateURLParam(r, "viewID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	v, err := routes.registry.View(viewID)
	if err != nil {
		common.WriteErrorResponse(w, "View not found", http.StatusNotFound)
		return nil, false
	}
	return v, true
}

func attachOptions(contentType string) ([]binder.AttachOption, error) {
	if contentType == "" {
		return nil, nil
	}
	t, err := content.ParseType(contentType)
	if err != nil {
		return nil, err
	}
	return []binder.AttachOption{binder.WithContentType(t)}, nil
}

func attachErrorStatus(err error) int {
	switch {
	case errors.Is(err, binder.ErrEmptyDocumentID), errors.Is(err, binder.ErrInvalidDocumentID):
		return http.StatusBadRequest
	case errors.Is(err, binder.ErrContentTypeMismatch):
		return http.StatusConflict
	case errors.Is(err, binder.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func resultStatus(res save.Result) int {
	switch res.Outcome {
	case save.OutcomeSaved, save.OutcomeClean:
		return http.StatusOK
	case save.OutcomeDisposed:
		return http.StatusGone
	case save.OutcomeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeOptionalJSON decodes the body into v unless it is empty
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
