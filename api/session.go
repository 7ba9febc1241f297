package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
)

// SessionHandler handles session-related HTTP endpoints.
type SessionHandler struct {
	store  *session.Store
	logger log.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *session.Store, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("PATCH /api/sessions/{id}/settings", h.updateSettings)
	mux.HandleFunc("POST /api/sessions/{id}/clear", h.clear)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// SessionResponse is the JSON view of a session.
type SessionResponse struct {
	ID       string           `json:"id"`
	Settings session.Settings `json:"settings"`
	History  []session.Turn   `json:"history"`
	Sources  []string         `json:"sources"`
}

func sessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		ID:       sess.ID.String(),
		Settings: sess.Settings(),
		History:  sess.History(),
		Sources:  sess.Sources(),
	}
}

// create creates a new session with default settings.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	sess := h.store.Create()
	h.logger.Debug("session created", "session_id", sess.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

// get returns the session's history, settings and ingested sources.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// SettingsPatch carries a partial settings update. Omitted fields keep
// their current value; a zero similarity_threshold is a valid value that
// admits every result.
type SettingsPatch struct {
	RAGEnabled          *bool    `json:"rag_enabled"`
	WebSearchEnabled    *bool    `json:"web_search_enabled"`
	ForceWebSearch      *bool    `json:"force_web_search"`
	SimilarityThreshold *float32 `json:"similarity_threshold"`
	TopK                *int     `json:"top_k"`
	SearchDomains       []string `json:"search_domains"`
}

// updateSettings applies a partial update to the session's retrieval
// settings.
func (h *SessionHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var patch SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if patch.SimilarityThreshold != nil &&
		(*patch.SimilarityThreshold < 0 || *patch.SimilarityThreshold > 1) {
		writeError(w, http.StatusBadRequest, "invalid_request", "similarity_threshold must be in [0, 1]")
		return
	}
	if patch.TopK != nil && *patch.TopK < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "top_k must be at least 1")
		return
	}

	settings := sess.Settings()
	if patch.RAGEnabled != nil {
		settings.RAGEnabled = *patch.RAGEnabled
	}
	if patch.WebSearchEnabled != nil {
		settings.WebSearchEnabled = *patch.WebSearchEnabled
	}
	if patch.ForceWebSearch != nil {
		settings.ForceWebSearch = *patch.ForceWebSearch
	}
	if patch.SimilarityThreshold != nil {
		settings.SimilarityThreshold = *patch.SimilarityThreshold
	}
	if patch.TopK != nil {
		settings.TopK = *patch.TopK
	}
	if patch.SearchDomains != nil {
		settings.SearchDomains = patch.SearchDomains
	}

	sess.UpdateSettings(settings)
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// clear removes the conversation history. Ingested sources survive so the
// knowledge base remains queryable in the fresh conversation.
func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sess.Clear()
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// delete removes the session entirely.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid session id")
		return
	}
	h.store.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves the {id} path parameter to a session, writing the error
// response itself when resolution fails.
func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid session id")
		return nil, false
	}
	sess, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return nil, false
		}
		h.logger.Error("session lookup failed", "error", err, "session_id", id)
		writeError(w, http.StatusInternalServerError, "internal_error", "session lookup failed")
		return nil, false
	}
	return sess, true
}
