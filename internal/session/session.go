// Package session holds per-conversation state: the append-only turn
// history, retrieval settings, and the list of ingested sources.
//
// History lives only for the process lifetime; nothing is persisted.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one committed conversation entry. Assistant turns contain only
// the visible text; reasoning spans are never committed to history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Settings are the per-session retrieval flags. They mirror the knobs the
// UI exposes and feed retrieval.Config on every turn.
type Settings struct {
	RAGEnabled       bool `json:"rag_enabled"`
	WebSearchEnabled bool `json:"web_search_enabled"`
	ForceWebSearch   bool `json:"force_web_search"`
	// SimilarityThreshold is the minimum score a retrieval result must
	// reach. Zero is valid and admits every result.
	SimilarityThreshold float32  `json:"similarity_threshold"`
	TopK                int      `json:"top_k"`
	SearchDomains       []string `json:"search_domains,omitempty"`
}

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		RAGEnabled:          true,
		WebSearchEnabled:    false,
		ForceWebSearch:      false,
		SimilarityThreshold: retrieval.DefaultThreshold,
		TopK:                retrieval.DefaultTopK,
	}
}

// Session is one conversation. Safe for concurrent use: the HTTP server
// may touch different sessions concurrently, and settings updates can
// race a streaming turn.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu       sync.RWMutex
	settings Settings
	history  []Turn
	sources  []string
}

// New creates an empty session with default settings.
func New() *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		settings:  DefaultSettings(),
	}
}

// Settings returns a copy of the current settings.
func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.settings
	cp.SearchDomains = append([]string(nil), s.settings.SearchDomains...)
	return cp
}

// UpdateSettings replaces the session settings. A negative threshold or a
// non-positive top-K resets that field to its default; a zero threshold
// is kept as-is.
func (s *Session) UpdateSettings(settings Settings) {
	if settings.SimilarityThreshold < 0 {
		settings.SimilarityThreshold = retrieval.DefaultThreshold
	}
	if settings.TopK <= 0 {
		settings.TopK = retrieval.DefaultTopK
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Commit appends a completed exchange to history. It is called once per
// successful turn; failed turns commit nothing.
func (s *Session) Commit(userInput, assistantResponse string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		Turn{Role: RoleUser, Content: userInput},
		Turn{Role: RoleAssistant, Content: strings.TrimSpace(assistantResponse)},
	)
}

// History returns a copy of all committed turns in order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Clear discards the conversation history. Settings and sources survive.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// AddSource records the name of an ingested document. Duplicates are
// ignored so re-ingesting the same file does not grow the list.
func (s *Session) AddSource(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sources {
		if existing == name {
			return
		}
	}
	s.sources = append(s.sources, name)
}

// Sources returns a copy of the ingested source names in ingestion order.
func (s *Session) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.sources))
	copy(out, s.sources)
	return out
}
