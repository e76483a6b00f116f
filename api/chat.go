package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/selldesk/concierge/internal/agent"
	"github.com/selldesk/concierge/internal/log"
)

// Converser runs one conversation turn. *agent.Agent satisfies it.
type Converser interface {
	Converse(ctx context.Context, threadID uuid.UUID, message string) (*agent.Result, error)
}

// ChatHandler handles the chat endpoints.
//
// Endpoints:
//   - POST /api/chat            - start a new thread
//   - POST /api/chat/{threadId} - continue a thread
type ChatHandler struct {
	conv   Converser
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(conv Converser, logger log.Logger) *ChatHandler {
	return &ChatHandler{conv: conv, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.startThread)
	mux.HandleFunc("POST /api/chat/{threadId}", h.continueThread)
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the response body for both chat endpoints.
// ThreadID is present only when starting a new thread.
type ChatResponse struct {
	ThreadID            string `json:"threadId,omitempty"`
	Response            string `json:"response"`
	PersistenceDegraded bool   `json:"persistenceDegraded,omitempty"`
}

// startThread handles POST /api/chat: generates a thread ID and runs the
// first turn.
func (h *ChatHandler) startThread(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	threadID := uuid.New()
	result, err := h.conv.Converse(r.Context(), threadID, req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ThreadID:            result.ThreadID.String(),
		Response:            result.Answer,
		PersistenceDegraded: result.PersistenceDegraded,
	})
}

// continueThread handles POST /api/chat/{threadId}. An unknown thread ID is
// not an error: the thread starts fresh under that ID.
func (h *ChatHandler) continueThread(w http.ResponseWriter, r *http.Request) {
	threadID, err := uuid.Parse(r.PathValue("threadId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "threadId must be a UUID")
		return
	}

	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.conv.Converse(r.Context(), threadID, req.Message)
	if err != nil {
		h.logger.Error("chat turn failed", "thread_id", threadID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:            result.Answer,
		PersistenceDegraded: result.PersistenceDegraded,
	})
}

// decodeRequest parses and validates the chat request body.
// Writes a 400 response and returns false on failure.
func (h *ChatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a message field")
		return ChatRequest{}, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return ChatRequest{}, false
	}
	return req, true
}
