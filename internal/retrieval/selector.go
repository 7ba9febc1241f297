// Package retrieval decides what grounding context a chat turn receives.
//
// The Selector walks a fixed precedence: the primary vector store first,
// a secondary store when the primary errors, then web search when document
// retrieval produced nothing (or was explicitly bypassed). Collaborator
// failures never abort a turn; they degrade to the next tier and surface
// as user-visible notices.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// Default retrieval parameters, applied when a session leaves them unset.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.7
)

// WebContextLabel prefixes web-grounded context so the model can tell it
// apart from indexed documents.
const WebContextLabel = "Web Search Results:\n"

// Result is one scored retrieval hit. Results are ephemeral: they ground a
// single turn and are never persisted.
type Result struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Score    float32           `json:"score"` // cosine similarity in [0,1]
}

// Searcher performs vector similarity search against a chunk store.
// Implementations return up to topK results; threshold filtering happens
// in the Selector so both stores behave identically.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}

// WebSearcher fetches formatted result fragments from a live web search.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Origin identifies where a turn's grounding context came from.
type Origin int

const (
	OriginNone Origin = iota
	OriginDocuments
	OriginWeb
)

func (o Origin) String() string {
	switch o {
	case OriginDocuments:
		return "documents"
	case OriginWeb:
		return "web"
	default:
		return "none"
	}
}

// Context is the grounding produced for one turn.
type Context struct {
	Origin  Origin
	Text    string   // assembled context, empty when Origin is OriginNone
	Sources []Result // document hits that passed the threshold
	Notices []string // user-facing degradation messages, in order
}

// Config carries the per-session retrieval settings for one turn.
type Config struct {
	TopK int
	// Threshold is the minimum similarity score a result must reach.
	// Zero is valid and admits every result; negative means unset.
	Threshold  float32
	ForceWeb   bool // skip document retrieval entirely
	WebEnabled bool // web search enabled for this session
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.Threshold < 0 {
		c.Threshold = DefaultThreshold
	}
	return c
}

// Selector assembles grounding context for chat turns.
//
// secondary and web may be nil: a nil secondary disables the error
// fallback, a nil web searcher (no API key configured) disables the web
// tier regardless of session flags.
type Selector struct {
	primary   Searcher
	secondary Searcher
	web       WebSearcher
	logger    *slog.Logger
}

// NewSelector creates a Selector. primary is required.
func NewSelector(primary Searcher, secondary Searcher, web WebSearcher, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		primary:   primary,
		secondary: secondary,
		web:       web,
		logger:    logger,
	}
}

// Select produces the grounding context for query under cfg. It never
// returns an error: every collaborator failure is logged, converted to a
// notice, and the next tier is tried.
func (s *Selector) Select(ctx context.Context, query string, cfg Config) Context {
	cfg = cfg.withDefaults()
	var out Context

	if !cfg.ForceWeb {
		s.selectDocuments(ctx, query, cfg, &out)
	}

	if (cfg.ForceWeb || out.Text == "") && cfg.WebEnabled && s.web != nil {
		s.selectWeb(ctx, query, &out)
	}

	if out.Text == "" {
		out.Origin = OriginNone
		out.Notices = append(out.Notices, "no relevant grounding found in documents or web search")
	}
	return out
}

// selectDocuments queries the primary store, falling back to the secondary
// store only when the primary returns an error. An empty result set is a
// valid answer and does not trigger the fallback.
func (s *Selector) selectDocuments(ctx context.Context, query string, cfg Config, out *Context) {
	results, err := s.primary.Search(ctx, query, cfg.TopK)
	if err != nil {
		s.logger.Warn("primary retrieval failed", "error", err)
		out.Notices = append(out.Notices, "document retrieval failed, falling back to backup index")

		if s.secondary == nil {
			return
		}
		results, err = s.secondary.Search(ctx, query, cfg.TopK)
		if err != nil {
			s.logger.Warn("secondary retrieval failed", "error", err)
			out.Notices = append(out.Notices, "backup index retrieval failed")
			return
		}
	}

	kept := results[:0:0]
	for _, r := range results {
		if r.Score >= cfg.Threshold {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })

	texts := make([]string, len(kept))
	for i, r := range kept {
		texts[i] = r.Text
	}

	out.Origin = OriginDocuments
	out.Text = strings.Join(texts, "\n\n")
	out.Sources = kept
	s.logger.Debug("document grounding selected", "hits", len(kept), "threshold", cfg.Threshold)
}

// selectWeb runs the web tier and overwrites any (empty) document context.
func (s *Selector) selectWeb(ctx context.Context, query string, out *Context) {
	fragments, err := s.web.Search(ctx, query)
	if err != nil {
		s.logger.Warn("web search failed", "error", err)
		out.Notices = append(out.Notices, "web search failed")
		return
	}
	if len(fragments) == 0 {
		return
	}

	out.Origin = OriginWeb
	out.Text = WebContextLabel + strings.Join(fragments, "\n\n")
	out.Sources = nil
	s.logger.Debug("web grounding selected", "fragments", len(fragments))
}
