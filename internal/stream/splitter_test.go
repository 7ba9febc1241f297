package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		input         string
		wantVisible   string
		wantReasoning string
	}{
		{
			name:          "no reasoning span",
			input:         "The answer is 42.",
			wantVisible:   "The answer is 42.",
			wantReasoning: "",
		},
		{
			name:          "reasoning then answer",
			input:         "<think>step one</think>Answer: 42",
			wantVisible:   "Answer: 42",
			wantReasoning: "step one",
		},
		{
			name:          "reasoning trimmed",
			input:         "<think>\n  consider both cases\n</think>done",
			wantVisible:   "done",
			wantReasoning: "consider both cases",
		},
		{
			name:          "multiline reasoning",
			input:         "<think>line one\nline two</think>ok",
			wantVisible:   "ok",
			wantReasoning: "line one\nline two",
		},
		{
			name:          "text before and after span",
			input:         "Sure. <think>check units</think>It is 9.8 m/s².",
			wantVisible:   "Sure. It is 9.8 m/s².",
			wantReasoning: "check units",
		},
		{
			name:          "multiple spans all removed first reported",
			input:         "<think>first</think>a<think>second</think>b",
			wantVisible:   "ab",
			wantReasoning: "first",
		},
		{
			name:          "empty span",
			input:         "<think></think>plain",
			wantVisible:   "plain",
			wantReasoning: "",
		},
		{
			name:          "unterminated span withheld",
			input:         "<think>partial",
			wantVisible:   "",
			wantReasoning: "",
		},
		{
			name:          "unterminated span after visible prefix",
			input:         "Hello <think>still going",
			wantVisible:   "Hello ",
			wantReasoning: "",
		},
		{
			name:          "stray close tag stays visible",
			input:         "no open here</think> tail",
			wantVisible:   "no open here</think> tail",
			wantReasoning: "",
		},
		{
			name:          "empty input",
			input:         "",
			wantVisible:   "",
			wantReasoning: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			visible, reasoning := Split(tt.input)
			assert.Equal(t, tt.wantVisible, visible)
			assert.Equal(t, tt.wantReasoning, reasoning)
		})
	}
}

// Splitting already-split output must be the identity: the visible view
// contains no delimiters, so a second pass changes nothing.
func TestSplitIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"<think>reason</think>Answer: 42",
		"plain text with no tags",
		"a<think>x</think>b<think>y</think>c",
	}
	for _, in := range inputs {
		visible, _ := Split(in)
		again, reasoning := Split(visible)
		assert.Equal(t, visible, again)
		assert.Empty(t, reasoning)
	}
}

// Feeding a response one byte at a time must match the single-shot split,
// regardless of where fragment boundaries fall inside delimiters.
func TestSplitterIncrementalMatchesSingleShot(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"<think>step one</think>Answer: 42",
		"prefix <think>a\nb</think> suffix <think>c</think> end",
		"no tags at all",
		"<think>unterminated tail",
		"ends with partial <thi",
		"<think>span</think><think>again</think>",
	}

	for _, input := range inputs {
		// every split point, then byte-at-a-time
		for frag := 1; frag <= len(input); frag++ {
			s := NewSplitter()
			for i := 0; i < len(input); i += frag {
				end := i + frag
				if end > len(input) {
					end = len(input)
				}
				s.Feed(input[i:end])
			}
			s.Close()

			wantVisible, wantReasoning := Split(input)
			reasoning, _ := s.Reasoning()
			require.Equal(t, wantVisible, s.Visible(), "input %q fragment size %d", input, frag)
			require.Equal(t, wantReasoning, reasoning, "input %q fragment size %d", input, frag)
		}
	}
}

func TestSplitterDelimiterAcrossFragments(t *testing.T) {
	t.Parallel()

	s := NewSplitter()
	s.Feed("<thi")
	s.Feed("nk>hidden</th")

	// close delimiter incomplete: span still open, nothing visible
	assert.Empty(t, s.Visible())
	_, ok := s.Reasoning()
	assert.False(t, ok)

	s.Feed("ink>Answer")
	s.Close()

	assert.Equal(t, "Answer", s.Visible())
	reasoning, ok := s.Reasoning()
	require.True(t, ok)
	assert.Equal(t, "hidden", reasoning)
}

func TestSplitterWithholdsOpenSpan(t *testing.T) {
	t.Parallel()

	s := NewSplitter()
	s.Feed("Before. <think>working on it")

	assert.Equal(t, "Before. ", s.Visible())
	_, ok := s.Reasoning()
	assert.False(t, ok)

	// stream ends without a closing delimiter: span content never surfaces
	s.Close()
	assert.Equal(t, "Before. ", s.Visible())
	_, ok = s.Reasoning()
	assert.False(t, ok)
}

func TestSplitterClosePromotesPartialOpenTag(t *testing.T) {
	t.Parallel()

	s := NewSplitter()
	s.Feed("total < 5 and <thin")

	// "<thin" could still become a delimiter, so it is held back
	assert.Equal(t, "total < 5 and ", s.Visible())

	s.Close()
	assert.Equal(t, "total < 5 and <thin", s.Visible())
}

func TestSplitterVisibleGrowsMonotonically(t *testing.T) {
	t.Parallel()

	input := "start <think>a</think> middle <think>b</think> end"
	s := NewSplitter()

	prev := ""
	for _, r := range input {
		s.Feed(string(r))
		cur := s.Visible()
		require.True(t, strings.HasPrefix(cur, prev), "visible text shrank from %q to %q", prev, cur)
		prev = cur
	}
}

func TestSplitterSpans(t *testing.T) {
	t.Parallel()

	s := NewSplitter()
	s.Feed("<think> first </think>mid<think>second</think>")
	s.Close()

	assert.Equal(t, []string{" first ", "second"}, s.Spans())

	reasoning, ok := s.Reasoning()
	require.True(t, ok)
	assert.Equal(t, "first", reasoning)
}

func TestSplitterCloseIdempotent(t *testing.T) {
	t.Parallel()

	s := NewSplitter()
	s.Feed("tail <th")
	s.Close()
	first := s.Visible()
	s.Close()
	s.Feed("ignored after close")

	assert.Equal(t, first, s.Visible())
}
