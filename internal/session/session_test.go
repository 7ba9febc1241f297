package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
)

func TestSessionCommitAndHistory(t *testing.T) {
	t.Parallel()

	sess := New()
	assert.Empty(t, sess.History())

	sess.Commit("what is pgvector?", "  An extension for Postgres.\n")
	sess.Commit("thanks", "You're welcome.")

	history := sess.History()
	require.Len(t, history, 4)
	assert.Equal(t, Turn{Role: RoleUser, Content: "what is pgvector?"}, history[0])
	// assistant content is committed trimmed
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "An extension for Postgres."}, history[1])
	assert.Equal(t, RoleUser, history[2].Role)
	assert.Equal(t, RoleAssistant, history[3].Role)
}

func TestSessionHistoryReturnsCopy(t *testing.T) {
	t.Parallel()

	sess := New()
	sess.Commit("a", "b")

	history := sess.History()
	history[0].Content = "mutated"

	assert.Equal(t, "a", sess.History()[0].Content)
}

func TestSessionClear(t *testing.T) {
	t.Parallel()

	sess := New()
	sess.Commit("q", "a")
	sess.AddSource("paper.pdf")
	sess.Clear()

	assert.Empty(t, sess.History())
	// sources survive a history clear
	assert.Equal(t, []string{"paper.pdf"}, sess.Sources())
}

func TestSessionSettings(t *testing.T) {
	t.Parallel()

	sess := New()
	got := sess.Settings()
	assert.True(t, got.RAGEnabled)
	assert.False(t, got.WebSearchEnabled)
	assert.InDelta(t, retrieval.DefaultThreshold, got.SimilarityThreshold, 1e-6)

	sess.UpdateSettings(Settings{
		RAGEnabled:          true,
		WebSearchEnabled:    true,
		SimilarityThreshold: 0.5,
		SearchDomains:       []string{"arxiv.org"},
	})
	got = sess.Settings()
	assert.True(t, got.WebSearchEnabled)
	assert.InDelta(t, 0.5, got.SimilarityThreshold, 1e-6)
	assert.Equal(t, []string{"arxiv.org"}, got.SearchDomains)

	// zero threshold is a valid value and survives the update
	sess.UpdateSettings(Settings{SimilarityThreshold: 0, TopK: 3})
	assert.Zero(t, sess.Settings().SimilarityThreshold)
	assert.Equal(t, 3, sess.Settings().TopK)

	// negative threshold and non-positive top-K reset to the defaults
	sess.UpdateSettings(Settings{SimilarityThreshold: -1})
	got = sess.Settings()
	assert.InDelta(t, retrieval.DefaultThreshold, got.SimilarityThreshold, 1e-6)
	assert.Equal(t, retrieval.DefaultTopK, got.TopK)
}

func TestSessionAddSourceDeduplicates(t *testing.T) {
	t.Parallel()

	sess := New()
	sess.AddSource("a.pdf")
	sess.AddSource("b.pdf")
	sess.AddSource("a.pdf")

	assert.Equal(t, []string{"a.pdf", "b.pdf"}, sess.Sources())
}

func TestStore(t *testing.T) {
	t.Parallel()

	store := NewStore()
	sess := store.Create()
	require.NotNil(t, sess)
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	store.Delete(sess.ID)
	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestStoreSeedsConfiguredDefaults(t *testing.T) {
	t.Parallel()

	defaults := DefaultSettings()
	defaults.SimilarityThreshold = 0.4
	defaults.TopK = 8
	store := NewStoreWith(defaults)

	got := store.Create().Settings()
	assert.InDelta(t, 0.4, got.SimilarityThreshold, 1e-6)
	assert.Equal(t, 8, got.TopK)
	assert.True(t, got.RAGEnabled)
}
