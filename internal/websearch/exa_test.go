package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, log.NewNop())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	c, err := New(Config{APIKey: "key"}, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultNumResults, c.cfg.NumResults)
	assert.Equal(t, DefaultDomains, c.cfg.IncludeDomains)
	assert.Equal(t, defaultEndpoint, c.cfg.Endpoint)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rag architectures", req.Query)
		assert.Equal(t, 5, req.NumResults)
		assert.Equal(t, []string{"arxiv.org"}, req.IncludeDomains)
		assert.True(t, req.Contents.Text)

		_ = json.NewEncoder(w).Encode(searchResponse{Results: []searchResult{
			{Title: "RAG survey", URL: "https://arxiv.org/abs/1", Text: "Survey of retrieval methods."},
			{Title: "No body", URL: "https://arxiv.org/abs/2"}, // dropped: empty text
			{Text: "Untitled fragment."},
		}})
	}))
	defer srv.Close()

	c, err := New(Config{
		APIKey:         "secret",
		Endpoint:       srv.URL,
		IncludeDomains: []string{"arxiv.org"},
	}, log.NewNop())
	require.NoError(t, err)

	fragments, err := c.Search(context.Background(), "rag architectures")
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Equal(t, "Title: RAG survey\nURL: https://arxiv.org/abs/1\nSurvey of retrieval methods.", fragments[0])
	assert.Equal(t, "Untitled fragment.", fragments[1])
}

func TestSearchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "k", Endpoint: srv.URL}, log.NewNop())
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "q")
	assert.ErrorContains(t, err, "status 429")
}

func TestFormatResultTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxSnippetLen+500)
	got := formatResult(searchResult{Title: "T", Text: long})
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), len("Title: T\n")+maxSnippetLen+3)
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// 3-byte runes guarantee the byte limit lands mid-rune
	s := strings.Repeat("語", 10)
	for n := 1; n < len(s); n++ {
		got := truncate(s, n)
		assert.True(t, utf8.ValidString(got), "truncate(%d) produced invalid UTF-8", n)
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, len(got), n+3)
	}

	assert.Equal(t, "短い", truncate("短い", 10))
}
