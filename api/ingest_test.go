package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/ingest"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
)

func multipartUpload(t *testing.T, sessionID string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if sessionID != "" {
		require.NoError(t, w.WriteField("sessionId", sessionID))
	}
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestIngestFilesUpload(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)
	sess := createTestSession(t, f)

	body, contentType := multipartUpload(t, sess.ID, map[string]string{
		"notes.txt":  "Retrieval augmented generation combines search and synthesis.",
		"readme.md":  "# Title\n\nSome markdown content worth indexing.",
		"binary.png": "not actually indexable",
	})

	resp, err := http.Post(f.server.URL+"/api/ingest/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result ingest.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.Equal(t, 2, result.ProcessedFiles)
	assert.Equal(t, 1, result.SkippedFiles)
	assert.GreaterOrEqual(t, result.TotalChunks, 2)
	assert.ElementsMatch(t, []string{"notes.txt", "readme.md"}, result.ProcessedNames)

	// chunks reached the store with text metadata
	require.NotEmpty(t, f.writer.chunks)
	assert.Equal(t, knowledge.SourceTypeText, f.writer.chunks[0].Metadata[knowledge.MetaSourceType])

	// sources recorded on the session
	updated, err := f.store.GetByString(sess.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes.txt", "readme.md"}, updated.Sources())
}

func TestIngestFilesEmpty(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)

	body, contentType := multipartUpload(t, "", nil)
	resp, err := http.Post(f.server.URL+"/api/ingest/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestURL(t *testing.T) {
	t.Parallel()

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><article>
			<h1>Vector Databases</h1>
			<p>Approximate nearest neighbor search over embedding spaces.</p>
		</article></body></html>`))
	}))
	defer page.Close()

	f := newServerFixture(t, nil)
	sess := createTestSession(t, f)

	body, err := json.Marshal(IngestURLRequest{URL: page.URL, SessionID: sess.ID})
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+"/api/ingest/url", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result IngestURLResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, page.URL, result.URL)
	assert.Greater(t, result.Chunks, 0)

	updated, err := f.store.GetByString(sess.ID)
	require.NoError(t, err)
	assert.Contains(t, updated.Sources(), page.URL)
}

func TestIngestURLMissing(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)

	resp, err := http.Post(f.server.URL+"/api/ingest/url", "application/json",
		strings.NewReader(`{"url": ""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestURLUnreachable(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)

	resp, err := http.Post(f.server.URL+"/api/ingest/url", "application/json",
		strings.NewReader(`{"url": "http://127.0.0.1:1/nothing"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
