// Package app assembles the application from its parts: configuration,
// model provider, stores, retrieval, and the turn engine.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/chat"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/config"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/ingest"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/websearch"
)

// App holds the wired application. Create with Setup, release with Close.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	DBPool    *pgxpool.Pool
	Primary   *knowledge.PGStore
	Secondary *knowledge.QdrantStore // nil unless Qdrant is enabled
	Web       *websearch.Client      // nil unless an Exa API key is set

	Sessions *session.Store
	Ingestor *ingest.Ingestor
	Engine   *chat.Engine

	cleanups []func()
}

// Close releases resources in reverse initialization order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func (a *App) onClose(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}
