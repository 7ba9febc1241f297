package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
)

func postChat(t *testing.T, f *serverFixture, path, sessionID, query string) *http.Response {
	t.Helper()

	body, err := json.Marshal(ChatRequest{SessionID: sessionID, Query: query})
	require.NoError(t, err)

	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestChatSynchronous(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, []retrieval.Result{
		{ID: "c1", Text: "grounding chunk", Score: 0.92},
	})
	sess := createTestSession(t, f)

	resp := postChat(t, f, "/api/chat", sess.ID, "what does the paper say?")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ChatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	assert.Equal(t, "Answer from mock.", got.Response)
	assert.Equal(t, "checking sources", got.Reasoning)
	assert.Equal(t, "documents", got.Origin)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "c1", got.Sources[0].ID)
	assert.Equal(t, sess.ID, got.SessionID)
}

func TestChatMissingQuery(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)
	sess := createTestSession(t, f)

	resp := postChat(t, f, "/api/chat", sess.ID, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatUnknownSession(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)

	resp := postChat(t, f, "/api/chat", "3f2d8a44-0000-4000-8000-000000000000", "hello")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// sseEvent is one parsed Server-Sent Event.
type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body *bufio.Scanner) []sseEvent {
	t.Helper()

	var events []sseEvent
	var current sseEvent
	for body.Scan() {
		line := body.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
				current = sseEvent{}
			}
		}
	}
	return events
}

func TestChatStream(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, []retrieval.Result{
		{ID: "c1", Text: "grounding chunk", Score: 0.92},
	})
	f.mock.StreamFragments(6)
	sess := createTestSession(t, f)

	resp := postChat(t, f, "/api/chat/stream", sess.ID, "what does the paper say?")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := parseSSE(t, bufio.NewScanner(resp.Body))
	require.NotEmpty(t, events)

	byName := map[string][]string{}
	for _, ev := range events {
		byName[ev.name] = append(byName[ev.name], ev.data)
	}

	// sources arrive before any model output
	assert.Equal(t, "sources", events[0].name)

	var reasoning SSEReasoningData
	require.Len(t, byName["reasoning"], 1)
	require.NoError(t, json.Unmarshal([]byte(byName["reasoning"][0]), &reasoning))
	assert.Equal(t, "checking sources", reasoning.Text)

	// chunks concatenate to the final visible response
	var streamed strings.Builder
	for _, data := range byName["chunk"] {
		var chunk SSEChunkData
		require.NoError(t, json.Unmarshal([]byte(data), &chunk))
		streamed.WriteString(chunk.Text)
	}

	require.Len(t, byName["done"], 1)
	var done SSEDoneData
	require.NoError(t, json.Unmarshal([]byte(byName["done"][0]), &done))
	assert.Equal(t, "Answer from mock.", done.Response)
	assert.Equal(t, done.Response, streamed.String())
	assert.Equal(t, "documents", done.Origin)
	assert.Equal(t, sess.ID, done.SessionID)

	assert.Empty(t, byName["error"])
}

func TestChatStreamEmitsNoticeWithoutGrounding(t *testing.T) {
	t.Parallel()

	f := newServerFixture(t, nil)
	sess := createTestSession(t, f)

	resp := postChat(t, f, "/api/chat/stream", sess.ID, "obscure question")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := parseSSE(t, bufio.NewScanner(resp.Body))

	var noticed bool
	for _, ev := range events {
		if ev.name == "notice" {
			var notice SSENoticeData
			require.NoError(t, json.Unmarshal([]byte(ev.data), &notice))
			assert.Contains(t, notice.Message, "no relevant grounding")
			noticed = true
		}
	}
	assert.True(t, noticed)
}
