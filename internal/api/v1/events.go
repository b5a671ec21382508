package v1

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/grain-editor/grain-shell/internal/api/common"
	"github.com/grain-editor/grain-shell/internal/status"
)

// eventWriteTimeout bounds a single websocket write to a subscriber
const eventWriteTimeout = 5 * time.Second

// streamEvents handles GET /api/v1/documents/{documentID}/events. The
// connection receives the current status first, then every status event of
// the document until it closes.
func (routes *Routes) streamEvents(w http.ResponseWriter, r *http.Request) {
	documentID, err := common.GetAndValidateURLParam(r, "documentID")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if routes.board == nil {
		common.WriteErrorResponse(w, "Status board is not enabled", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("Failed to accept event stream", "document", documentID, "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	events, unsubscribe := routes.board.Subscribe(documentID)
	defer unsubscribe()

	// the stream is write-only; CloseRead handles the peer's close frame
	ctx := conn.CloseRead(r.Context())

	if st, ok := routes.board.Get(documentID); ok {
		current := status.Event{DocumentID: documentID, Kind: st.Kind, Reason: st.Reason, At: st.UpdatedAt}
		if err := writeEvent(ctx, conn, current); err != nil {
			slog.Debug("Event stream closed", "document", documentID, "error", err)
			return
		}
	}

	slog.Debug("Event stream opened", "document", documentID)
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "document closed")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("Event stream closed", "document", documentID, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev status.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
