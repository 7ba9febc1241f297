// Package knowledge stores and searches embedded document chunks.
//
// Two stores implement the same search contract: the primary store keeps
// chunks in PostgreSQL with pgvector, the secondary mirrors them into
// Qdrant as a fallback index. Both normalize scores to cosine similarity
// in [0,1] so threshold filtering behaves identically upstream.
package knowledge

import "errors"

// VectorDim is the embedding dimensionality of the configured embedder
// (snowflake-arctic-embed). Both indexes are created with this size.
const VectorDim = 1024

// UpsertBatchSize bounds how many chunks are embedded and written per
// round trip.
const UpsertBatchSize = 50

// Source type values for chunk metadata.
const (
	SourceTypePDF      = "pdf"
	SourceTypeURL      = "url"
	SourceTypeText     = "text"
	SourceTypeDocument = "document"
)

// Metadata keys attached to every chunk.
const (
	MetaSourceType = "source_type"
	MetaOriginName = "origin_name"
	MetaIngestedAt = "ingested_at"
)

// ErrEmptyEmbedding indicates the embedder returned no vector for a text.
var ErrEmptyEmbedding = errors.New("empty embedding returned")

// Chunk is one embeddable piece of an ingested document.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}
