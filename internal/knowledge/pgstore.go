package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
)

// searchTimeout bounds vector search queries so a slow index cannot stall
// a chat turn.
const searchTimeout = 10 * time.Second

const upsertChunkSQL = `
INSERT INTO chunks (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content,
    metadata = EXCLUDED.metadata,
    embedding = EXCLUDED.embedding,
    ingested_at = now()`

const searchChunksSQL = `
SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`

// PGStore is the primary chunk store: PostgreSQL with the pgvector
// extension. Embedding happens at the store boundary so callers only deal
// in text.
//
// Safe for concurrent use.
type PGStore struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewPGStore creates a PGStore backed by the given pool.
func NewPGStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, embedder: embedder, logger: logger}
}

// Upsert embeds and writes chunks in batches of UpsertBatchSize. Existing
// chunk IDs are overwritten. The write is not transactional across
// batches; a failure leaves earlier batches committed.
func (s *PGStore) Upsert(ctx context.Context, chunks []Chunk) error {
	for start := 0; start < len(chunks); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(chunks))
		if err := s.upsertBatch(ctx, chunks[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		s.logger.Debug("chunk batch upserted", "from", start, "to", end, "total", len(chunks))
	}
	return nil
}

func (s *PGStore) upsertBatch(ctx context.Context, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := EmbedTexts(ctx, s.embedder, texts)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		metadataJSON, marshalErr := json.Marshal(c.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("marshal metadata for chunk %q: %w", c.ID, marshalErr)
		}
		vec := pgvector.NewVector(vectors[i])
		batch.Queue(upsertChunkSQL, c.ID, c.Text, metadataJSON, vec)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range chunks {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("upsert chunk %q: %w", chunks[i].ID, execErr)
		}
	}
	return nil
}

// Search implements retrieval.Searcher. Scores are cosine similarity in
// [0,1], computed as 1 - cosine distance.
func (s *PGStore) Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vector, err := EmbedText(queryCtx, s.embedder, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.pool.Query(queryCtx, searchChunksSQL, pgvector.NewVector(vector), topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return s.rowsToResults(rows)
}

// Count reports the number of stored chunks.
func (s *PGStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// DeleteByOrigin removes every chunk ingested from the named source.
func (s *PGStore) DeleteByOrigin(ctx context.Context, originName string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM chunks WHERE metadata->>$1 = $2`, MetaOriginName, originName)
	if err != nil {
		return fmt.Errorf("delete chunks for %q: %w", originName, err)
	}
	return nil
}

func (s *PGStore) rowsToResults(rows pgx.Rows) ([]retrieval.Result, error) {
	var results []retrieval.Result
	for rows.Next() {
		var (
			id           string
			content      string
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&id, &content, &metadataJSON, &similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}

		var metadata map[string]string
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", id, "error", err)
			metadata = make(map[string]string)
		}

		results = append(results, retrieval.Result{
			ID:       id,
			Text:     content,
			Metadata: metadata,
			Score:    float32(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}
