package knowledge

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// EmbedText embeds a single text and validates the vector dimensionality.
func EmbedText(ctx context.Context, embedder ai.Embedder, text string) ([]float32, error) {
	vectors, err := EmbedTexts(ctx, embedder, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of texts in one request, preserving order.
// Every returned vector is checked against VectorDim so a misconfigured
// embedder fails loudly instead of corrupting the index.
func EmbedTexts(ctx context.Context, embedder ai.Embedder, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyEmbedding)
		}
		if len(e.Embedding) != VectorDim {
			return nil, fmt.Errorf("text %d: embedding has dimension %d, want %d", i, len(e.Embedding), VectorDim)
		}
		vectors[i] = e.Embedding
	}
	return vectors, nil
}
