// ABOUTME: REST handlers for the messaging operations
// ABOUTME: gorilla/mux router wiring send/edit/delete/read/roster endpoints

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wachichaw/allychat/internal/chat"
	"github.com/wachichaw/allychat/internal/roster"
)

// Handler serves the messaging HTTP API.
type Handler struct {
	chats  *chat.Service
	roster *roster.Service
	logger *slog.Logger
}

// NewHandler creates the API handler. Pass nil logger for the default.
func NewHandler(chats *chat.Service, rosterSvc *roster.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		chats:  chats,
		roster: rosterSvc,
		logger: logger.With("component", "api"),
	}
}

// Router builds the full route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/api/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms/{roomKey}/messages", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{roomKey}/messages/{messageId}", h.editMessage).Methods(http.MethodPatch)
	r.HandleFunc("/api/rooms/{roomKey}/messages/{messageId}", h.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/api/rooms/{roomKey}/read", h.markRead).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations", h.conversations).Methods(http.MethodGet)
	r.HandleFunc("/ws/messages", h.streamMessages).Methods(http.MethodGet)

	return r
}

type sendMessageRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	SenderRole string `json:"senderRole"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.chats.SendMessage(r.Context(), req.SenderID, req.ReceiverID, req.Content, req.SenderRole)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	roomKey := mux.Vars(r)["roomKey"]

	msgs, err := h.chats.Messages(r.Context(), roomKey)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.chats.EditMessage(r.Context(), vars["roomKey"], vars["messageId"], req.Content)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.chats.DeleteMessage(r.Context(), vars["roomKey"], vars["messageId"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markReadRequest struct {
	UserID string `json:"userId"`
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chats.MarkRead(r.Context(), mux.Vars(r)["roomKey"], req.UserID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	summaries, err := h.roster.ActiveConversations(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// writeServiceError maps service errors onto HTTP statuses. A failed
// mutation must never look like a success.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidParticipant):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrMessageNotFound), errors.Is(err, chat.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, roster.ErrDirectoryUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusBadGateway, "store operation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// logRequests is the request-logging middleware.
func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
