package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/qdrant/go-client/qdrant"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
)

// textPayloadKey holds the chunk text inside a Qdrant point payload;
// the remaining payload keys are chunk metadata.
const textPayloadKey = "text"

// QdrantStore is the secondary chunk store, consulted only when the
// primary errors. Points carry the chunk text and metadata as payload so
// search needs no second lookup.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	embedder   ai.Embedder
	logger     *slog.Logger
}

// NewQdrantStore creates a QdrantStore over an existing client connection.
func NewQdrantStore(client *qdrant.Client, collection string, embedder ai.Embedder, logger *slog.Logger) *QdrantStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantStore{
		client:     client,
		collection: collection,
		embedder:   embedder,
		logger:     logger,
	}
}

// EnsureCollection creates the collection if it does not exist, sized for
// VectorDim with cosine distance.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range existing {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDim,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", s.collection, err)
	}
	s.logger.Info("created qdrant collection", "collection", s.collection, "dim", VectorDim)
	return nil
}

// Upsert embeds and writes chunks in batches of UpsertBatchSize.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk) error {
	for start := 0; start < len(chunks); start += UpsertBatchSize {
		end := min(start+UpsertBatchSize, len(chunks))
		if err := s.upsertBatch(ctx, chunks[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *QdrantStore) upsertBatch(ctx context.Context, chunks []Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := EmbedTexts(ctx, s.embedder, texts)
	if err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{textPayloadKey: c.Text}
		for k, v := range c.Metadata {
			payload[k] = v
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// Search implements retrieval.Searcher. Qdrant reports cosine similarity
// natively, so scores are used as-is.
func (s *QdrantStore) Search(ctx context.Context, query string, topK int) ([]retrieval.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vector, err := EmbedText(queryCtx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := uint64(topK)
	hits, err := s.client.Query(queryCtx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query qdrant: %w", err)
	}

	results := make([]retrieval.Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, hitToResult(hit))
	}
	return results, nil
}

func hitToResult(hit *qdrant.ScoredPoint) retrieval.Result {
	result := retrieval.Result{
		ID:       pointIDString(hit.GetId()),
		Score:    hit.GetScore(),
		Metadata: make(map[string]string),
	}
	for key, val := range hit.GetPayload() {
		if key == textPayloadKey {
			result.Text = val.GetStringValue()
			continue
		}
		if s := val.GetStringValue(); s != "" {
			result.Metadata[key] = s
		}
	}
	return result
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}
