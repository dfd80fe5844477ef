// ABOUTME: WebSocket endpoint bridging a chat subscription to a client socket
// ABOUTME: One writer goroutine per connection; subscription cancelled on close

package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/wachichaw/allychat/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsFrame is the wire envelope pushed to stream clients.
type wsFrame struct {
	Type     string         `json:"type"` // "snapshot" or "error"
	RoomKey  string         `json:"roomKey,omitempty"`
	Messages []chat.Message `json:"messages,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// streamMessages upgrades the connection and forwards live snapshots of
// the pair's room until the client disconnects.
func (h *Handler) streamMessages(w http.ResponseWriter, r *http.Request) {
	senderID := r.URL.Query().Get("senderId")
	receiverID := r.URL.Query().Get("receiverId")

	// Validate before upgrading so bad requests get a plain HTTP error.
	if _, err := chat.RoomKey(senderID, receiverID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Snapshot and error callbacks run on the subscription goroutine, so
	// frames funnel through one channel to keep a single socket writer.
	// A slow client sheds the oldest frame: every snapshot is the full
	// state, so only the newest one matters.
	frames := make(chan wsFrame, 16)
	push := func(f wsFrame) {
		for {
			select {
			case frames <- f:
				return
			default:
				select {
				case <-frames:
				default:
				}
			}
		}
	}
	sub, err := h.chats.Subscribe(r.Context(), senderID, receiverID,
		func(snap chat.Snapshot) {
			push(wsFrame{Type: "snapshot", RoomKey: snap.RoomKey, Messages: snap.Messages})
		},
		func(err error) {
			push(wsFrame{Type: "error", Error: err.Error()})
		},
	)
	if err != nil {
		h.logger.Warn("subscribe failed", "error", err)
		return
	}
	defer sub.Cancel()

	// Reader: only watches for the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame := <-frames:
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.Debug("stream client write failed", "error", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
