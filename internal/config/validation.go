package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for consistency. It fails fast so a
// misconfigured process never reaches the serving path.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGemini, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (expected one of: ollama, openai, gemini, googleai)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}

	if c.Provider == ProviderOllama {
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidOllamaHost, c.OllamaHost)
		}
	}

	if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
		return fmt.Errorf("%w: host, user and database name are required", ErrInvalidPostgres)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}

	if c.Qdrant.Enabled {
		if c.Qdrant.Host == "" || c.Qdrant.Collection == "" {
			return fmt.Errorf("%w: host and collection are required when enabled", ErrInvalidQdrant)
		}
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidQdrant, c.Qdrant.Port)
		}
	}

	if t := c.Retrieval.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("%w: %v not in [0, 1]", ErrInvalidThreshold, t)
	}

	return nil
}
