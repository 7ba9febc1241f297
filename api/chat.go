package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/chat"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
)

// ChatHandler handles chat-related HTTP endpoints.
//
// Endpoints:
//   - POST /api/chat        - Synchronous chat (JSON request/response)
//   - POST /api/chat/stream - Streaming chat (SSE - Server-Sent Events)
//
// Both endpoints run the same turn engine; the streaming variant relays
// the engine's callbacks as SSE events while the turn is in flight.
type ChatHandler struct {
	engine *chat.Engine
	store  *session.Store
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(engine *chat.Engine, store *session.Store, logger log.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, store: store, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.engine == nil {
		h.logger.Warn("chat engine is nil, chat endpoints not registered")
		return
	}
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the request body for both chat endpoints.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Query     string `json:"query"`
}

// ChatResponse is the response body for the synchronous endpoint.
type ChatResponse struct {
	Response  string             `json:"response"`
	Reasoning string             `json:"reasoning,omitempty"`
	Origin    string             `json:"origin"`
	Sources   []retrieval.Result `json:"sources,omitempty"`
	Notices   []string           `json:"notices,omitempty"`
	SessionID string             `json:"sessionId"`
}

// resolve parses and validates the request body and resolves the session.
func (h *ChatHandler) resolve(w http.ResponseWriter, r *http.Request) (*session.Session, ChatRequest, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return nil, req, false
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session_id", "sessionId is required")
		return nil, req, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return nil, req, false
	}

	sess, err := h.store.GetByString(req.SessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return nil, req, false
	}
	return sess, req, true
}

// handleChat runs one turn and returns the complete result as JSON.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, req, ok := h.resolve(w, r)
	if !ok {
		return
	}

	res, err := h.engine.Run(r.Context(), sess, req.Query, chat.Events{})
	if err != nil {
		h.logger.Error("chat turn failed", "error", err, "session_id", sess.ID)
		writeError(w, http.StatusInternalServerError, "generation_failed", "response generation failed")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  res.Visible,
		Reasoning: res.Reasoning,
		Origin:    res.Grounding.Origin.String(),
		Sources:   res.Grounding.Sources,
		Notices:   res.Grounding.Notices,
		SessionID: sess.ID.String(),
	})
}

// SSE payload types. The event name travels in the SSE "event:" field;
// these are the "data:" payloads.
type (
	// SSENoticeData is the data for "notice" events (retrieval fallbacks).
	SSENoticeData struct {
		Message string `json:"message"`
	}

	// SSESourcesData is the data for "sources" events.
	SSESourcesData struct {
		Sources []retrieval.Result `json:"sources"`
	}

	// SSEReasoningData is the data for "reasoning" events.
	SSEReasoningData struct {
		Text string `json:"text"`
	}

	// SSEChunkData is the data for "chunk" events (visible text deltas).
	SSEChunkData struct {
		Text string `json:"text"`
	}

	// SSEDoneData is the data for "done" events.
	SSEDoneData struct {
		Response  string `json:"response"`
		Reasoning string `json:"reasoning,omitempty"`
		Origin    string `json:"origin"`
		SessionID string `json:"sessionId"`
	}

	// SSEErrorData is the data for "error" events.
	SSEErrorData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// handleStream handles the SSE streaming endpoint.
//
// Request body: {"query": "...", "sessionId": "..."}
// Response: Server-Sent Events stream
//
// Event types:
//   - notice:    retrieval degradation {"message": "..."}
//   - sources:   grounding documents {"sources": [...]}
//   - reasoning: completed reasoning span {"text": "..."}
//   - chunk:     visible text delta {"text": "..."}
//   - done:      final result {"response": "...", "origin": "...", "sessionId": "..."}
//   - error:     turn failed {"code": "...", "message": "..."}
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sess, req, ok := h.resolve(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	ctx := r.Context()
	h.logger.Info("SSE stream started", "session_id", sess.ID)

	events := chat.Events{
		Notice: func(notice string) {
			h.writeSSE(w, flusher, "notice", SSENoticeData{Message: notice})
		},
		Sources: func(sources []retrieval.Result) {
			h.writeSSE(w, flusher, "sources", SSESourcesData{Sources: sources})
		},
		Reasoning: func(reasoning string) {
			h.writeSSE(w, flusher, "reasoning", SSEReasoningData{Text: reasoning})
		},
		Visible: func(delta string) {
			h.writeSSE(w, flusher, "chunk", SSEChunkData{Text: delta})
		},
	}

	res, err := h.engine.Run(ctx, sess, req.Query, events)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "session_id", sess.ID)
			return
		}
		h.logger.Error("stream failed", "error", err, "session_id", sess.ID)
		h.writeSSE(w, flusher, "error", SSEErrorData{
			Code:    "generation_failed",
			Message: "response generation failed",
		})
		return
	}

	h.writeSSE(w, flusher, "done", SSEDoneData{
		Response:  res.Visible,
		Reasoning: res.Reasoning,
		Origin:    res.Grounding.Origin.String(),
		SessionID: sess.ID.String(),
	})
	h.logger.Info("SSE stream completed",
		"session_id", sess.ID,
		"origin", res.Grounding.Origin.String(),
		"response_len", len(res.Visible))
}

// writeSSE writes one event to the SSE stream and flushes it.
func (h *ChatHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode SSE payload", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
