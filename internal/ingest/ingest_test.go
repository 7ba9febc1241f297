package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
)

type captureWriter struct {
	chunks []knowledge.Chunk
	err    error
	calls  int
}

func (w *captureWriter) Upsert(_ context.Context, chunks []knowledge.Chunk) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.chunks = append(w.chunks, chunks...)
	return nil
}

func TestIngestText(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{}
	ig := New(Config{}, log.NewNop(), writer)

	n, err := ig.IngestText(context.Background(), "notes.txt", "short document body", knowledge.SourceTypeText)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, writer.chunks, 1)

	chunk := writer.chunks[0]
	assert.NotEmpty(t, chunk.ID)
	assert.Equal(t, "short document body", chunk.Text)
	assert.Equal(t, knowledge.SourceTypeText, chunk.Metadata[knowledge.MetaSourceType])
	assert.Equal(t, "notes.txt", chunk.Metadata[knowledge.MetaOriginName])
	assert.NotEmpty(t, chunk.Metadata[knowledge.MetaIngestedAt])
}

func TestIngestTextSplitsLongInput(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{}
	ig := New(Config{ChunkSize: 100, ChunkOverlap: 10}, log.NewNop(), writer)

	long := strings.Repeat("sentence about vector databases. ", 40)
	n, err := ig.IngestText(context.Background(), "long.txt", long, knowledge.SourceTypeText)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
	assert.Len(t, writer.chunks, n)

	// every chunk carries the same origin
	for _, c := range writer.chunks {
		assert.Equal(t, "long.txt", c.Metadata[knowledge.MetaOriginName])
	}
}

func TestIngestTextEmpty(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{}
	ig := New(Config{}, log.NewNop(), writer)

	_, err := ig.IngestText(context.Background(), "empty.txt", "   \n ", knowledge.SourceTypeText)
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Zero(t, writer.calls)
}

func TestIngestTextWritesAllStores(t *testing.T) {
	t.Parallel()

	primary := &captureWriter{}
	mirror := &captureWriter{}
	ig := New(Config{}, log.NewNop(), primary, mirror)

	_, err := ig.IngestText(context.Background(), "doc.txt", "content", knowledge.SourceTypeText)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, mirror.calls)
	assert.Equal(t, primary.chunks[0].ID, mirror.chunks[0].ID)
}

func TestIngestTextWriterError(t *testing.T) {
	t.Parallel()

	writer := &captureWriter{err: errors.New("store down")}
	ig := New(Config{}, log.NewNop(), writer)

	_, err := ig.IngestText(context.Background(), "doc.txt", "content", knowledge.SourceTypeText)
	assert.ErrorContains(t, err, "store down")
}

func TestIngestFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("some text to index"), 0o600))
	unsupported := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(unsupported, []byte{0x89, 0x50}, 0o600))
	missing := filepath.Join(dir, "gone.txt")

	writer := &captureWriter{}
	ig := New(Config{}, log.NewNop(), writer)

	res := ig.IngestFiles(context.Background(), []string{good, unsupported, missing})

	assert.Equal(t, 1, res.ProcessedFiles)
	assert.Equal(t, 2, res.SkippedFiles)
	assert.Equal(t, 1, res.TotalChunks)
	assert.Equal(t, []string{"good.txt"}, res.ProcessedNames)
}

func TestIngestFileUnsupportedType(t *testing.T) {
	t.Parallel()

	ig := New(Config{}, log.NewNop(), &captureWriter{})
	_, err := ig.IngestFile(context.Background(), "archive.zip")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestIngestURL(t *testing.T) {
	t.Parallel()

	page := `<!DOCTYPE html><html><head><title>Test Article</title></head>
<body><article><h1>Heading</h1>
<p>This is the readable body of the page, long enough to be treated as content by the extractor.</p>
<p>It talks about retrieval augmented generation in some depth and detail.</p>
</article></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	writer := &captureWriter{}
	ig := New(Config{}, log.NewNop(), writer)

	n, err := ig.IngestURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, writer.chunks, 1)
	assert.Contains(t, writer.chunks[0].Text, "readable body")
	assert.Equal(t, knowledge.SourceTypeURL, writer.chunks[0].Metadata[knowledge.MetaSourceType])
	assert.Equal(t, srv.URL, writer.chunks[0].Metadata[knowledge.MetaOriginName])
}

func TestIngestURLBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ig := New(Config{}, log.NewNop(), &captureWriter{})
	_, err := ig.IngestURL(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")
}

func TestIngestURLRejectsScheme(t *testing.T) {
	t.Parallel()

	ig := New(Config{}, log.NewNop(), &captureWriter{})
	_, err := ig.IngestURL(context.Background(), "ftp://example.com/file")
	assert.ErrorContains(t, err, "scheme")
}
