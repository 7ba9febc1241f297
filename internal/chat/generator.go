// Package chat runs conversation turns: it assembles grounded prompts,
// invokes the model with retry and rate limiting, and splits the streamed
// response into visible text and reasoning.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// fallbackResponseMessage is returned when the model produces an empty
// response.
const fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// ErrGeneration wraps model invocation failures.
var ErrGeneration = errors.New("generation failed")

// FragmentCallback receives each raw model fragment as it streams in.
// Returning an error aborts the stream.
type FragmentCallback func(ctx context.Context, fragment string) error

// GeneratorConfig contains the required parameters for a Generator.
type GeneratorConfig struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "ollama/deepseek-r1"
	Logger    *slog.Logger

	// Resilience. Zero values take defaults.
	Retry       RetryConfig
	RateLimiter *rate.Limiter
}

func (cfg GeneratorConfig) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Generator invokes the chat model. All configuration is captured
// immutably at construction, so a Generator is safe for concurrent use.
type Generator struct {
	g           *genkit.Genkit
	modelName   string
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	retryConfig := cfg.Retry
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Generator{
		g:           cfg.Genkit,
		modelName:   cfg.ModelName,
		retryConfig: retryConfig,
		rateLimiter: rl,
		logger:      cfg.Logger,
	}, nil
}

// Generate runs one model call with the standard system prompt. The
// callback, when non-nil, receives raw fragments (reasoning delimiters
// included) as they stream in. The complete raw response is returned
// after the stream ends.
func (g *Generator) Generate(ctx context.Context, prompt string, callback FragmentCallback) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(g.modelName),
		ai.WithSystem("%s", SystemPrompt),
		ai.WithPrompt("%s", prompt),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			return callback(cbCtx, chunk.Text())
		}))
	}

	resp, err := g.generateWithRetry(ctx, opts)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		g.logger.Warn("model returned empty response")
		text = fallbackResponseMessage
	}
	return text, nil
}
