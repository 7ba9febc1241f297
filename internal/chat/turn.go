package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/stream"
)

// Events carries the streaming callbacks for one turn. Any field may be
// nil; the engine skips nil callbacks.
type Events struct {
	Notice    func(notice string)
	Sources   func(sources []retrieval.Result)
	Reasoning func(reasoning string)
	Visible   func(delta string)
}

// TurnResult is the committed outcome of one successful turn.
type TurnResult struct {
	Visible   string
	Reasoning string
	Grounding retrieval.Context
}

// Engine drives one conversation turn end to end: select grounding, build
// the prompt, stream the model response through the splitter, and commit
// the visible text to the session on success.
type Engine struct {
	selector  *retrieval.Selector
	generator *Generator
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(selector *retrieval.Selector, generator *Generator, logger *slog.Logger) (*Engine, error) {
	if selector == nil {
		return nil, errors.New("selector is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{selector: selector, generator: generator, logger: logger}, nil
}

// Run executes one turn for the session. On success the exchange is
// committed to history; on generation failure nothing is committed and
// the error is returned.
func (e *Engine) Run(ctx context.Context, sess *session.Session, input string, ev Events) (*TurnResult, error) {
	settings := sess.Settings()

	var grounding retrieval.Context
	prompt := BuildPlainPrompt(input)

	if settings.RAGEnabled || settings.WebSearchEnabled {
		cfg := retrieval.Config{
			TopK:       settings.TopK,
			Threshold:  settings.SimilarityThreshold,
			WebEnabled: settings.WebSearchEnabled,
			// force only acts when the web tier is actually available;
			// RAG off with web on also bypasses document retrieval
			ForceWeb: settings.WebSearchEnabled && (settings.ForceWebSearch || !settings.RAGEnabled),
		}
		grounding = e.selector.Select(ctx, input, cfg)

		for _, notice := range grounding.Notices {
			emit(ev.Notice, notice)
		}
		if len(grounding.Sources) > 0 {
			emit(ev.Sources, grounding.Sources)
		}
		prompt = BuildPrompt(grounding, input)
	}

	// Live splitter for incremental events. The final result is computed
	// from the complete response below, which matches the incremental
	// view by construction.
	splitter := stream.NewSplitter()
	reasoningSent := false
	emitted := 0

	raw, err := e.generator.Generate(ctx, prompt, func(_ context.Context, fragment string) error {
		splitter.Feed(fragment)

		if visible := splitter.Visible(); len(visible) > emitted {
			emit(ev.Visible, visible[emitted:])
			emitted = len(visible)
		}
		if !reasoningSent {
			if reasoning, ok := splitter.Reasoning(); ok {
				reasoningSent = true
				emit(ev.Reasoning, reasoning)
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("turn failed", "session_id", sess.ID, "error", err)
		return nil, err
	}

	visible, reasoning := stream.Split(raw)
	if len(visible) > emitted {
		emit(ev.Visible, visible[emitted:])
	}
	if reasoning != "" && !reasoningSent {
		emit(ev.Reasoning, reasoning)
	}

	sess.Commit(input, visible)
	e.logger.Debug("turn committed",
		"session_id", sess.ID,
		"origin", grounding.Origin.String(),
		"visible_len", len(visible),
		"has_reasoning", reasoning != "",
	)

	return &TurnResult{
		Visible:   visible,
		Reasoning: reasoning,
		Grounding: grounding,
	}, nil
}

func emit[T any](fn func(T), v T) {
	if fn != nil {
		fn(v)
	}
}
