package knowledge

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
)

func TestHitToResult(t *testing.T) {
	t.Parallel()

	hit := &qdrant.ScoredPoint{
		Id:    qdrant.NewID("4c0d3a25-4cbe-4a4c-a1a4-6a4a2b1f9f01"),
		Score: 0.83,
		Payload: qdrant.NewValueMap(map[string]any{
			textPayloadKey: "chunk text",
			MetaSourceType: SourceTypePDF,
			MetaOriginName: "paper.pdf",
		}),
	}

	got := hitToResult(hit)

	assert.Equal(t, "4c0d3a25-4cbe-4a4c-a1a4-6a4a2b1f9f01", got.ID)
	assert.Equal(t, "chunk text", got.Text)
	assert.InDelta(t, 0.83, got.Score, 1e-6)
	assert.Equal(t, SourceTypePDF, got.Metadata[MetaSourceType])
	assert.Equal(t, "paper.pdf", got.Metadata[MetaOriginName])
	// text lives in the Text field, not the metadata
	assert.NotContains(t, got.Metadata, textPayloadKey)
}

func TestHitToResultEmptyPayload(t *testing.T) {
	t.Parallel()

	got := hitToResult(&qdrant.ScoredPoint{Score: 0.5})
	assert.Empty(t, got.ID)
	assert.Empty(t, got.Text)
	assert.Empty(t, got.Metadata)
}

func TestPointIDString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", pointIDString(nil))
	assert.Equal(t, "abc-123", pointIDString(qdrant.NewID("abc-123")))
	assert.Equal(t, "42", pointIDString(qdrant.NewIDNum(42)))
}
