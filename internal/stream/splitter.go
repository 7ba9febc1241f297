// Package stream separates model output into visible text and private
// reasoning as fragments arrive.
//
// DeepSeek-style models emit their chain of thought wrapped in
// <think>...</think> delimiters, interleaved with the user-facing answer.
// The Splitter consumes the raw fragment stream and maintains both views
// incrementally, so the UI can render the answer while reasoning is still
// being produced. Each new fragment is scanned once; only a bounded tail is
// re-examined when a delimiter is split across fragment boundaries.
package stream

import "strings"

const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// Splitter incrementally separates <think> spans from visible text.
//
// It is a two-state machine: outside a span, input accumulates as visible
// text; inside a span, input accumulates as reasoning. While a span is
// unterminated, everything from its opening delimiter onward is withheld
// from the visible view. A Splitter tracks one assistant turn and is not
// safe for concurrent use.
type Splitter struct {
	visible strings.Builder
	span    strings.Builder
	spans   []string

	// carry holds the unscanned tail of the input: either a partial
	// delimiter split across fragments, or the outside-text remainder
	// that Close flushes.
	carry  string
	inSpan bool
	closed bool
}

// NewSplitter returns a Splitter ready to consume a fragment stream.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Feed consumes the next model fragment. Fragments may split delimiters at
// arbitrary byte positions; Feed reassembles them across calls.
func (s *Splitter) Feed(fragment string) {
	if s.closed || fragment == "" {
		return
	}
	s.carry += fragment

	for {
		if s.inSpan {
			idx := strings.Index(s.carry, closeTag)
			if idx < 0 {
				keep := partialTagLen(s.carry, closeTag)
				s.span.WriteString(s.carry[:len(s.carry)-keep])
				s.carry = s.carry[len(s.carry)-keep:]
				return
			}
			s.span.WriteString(s.carry[:idx])
			s.spans = append(s.spans, s.span.String())
			s.span.Reset()
			s.carry = s.carry[idx+len(closeTag):]
			s.inSpan = false
			continue
		}

		idx := strings.Index(s.carry, openTag)
		if idx < 0 {
			keep := partialTagLen(s.carry, openTag)
			s.visible.WriteString(s.carry[:len(s.carry)-keep])
			s.carry = s.carry[len(s.carry)-keep:]
			return
		}
		s.visible.WriteString(s.carry[:idx])
		s.carry = s.carry[idx+len(openTag):]
		s.inSpan = true
	}
}

// Close marks the end of the stream. Text held back as a possible partial
// open delimiter becomes visible; an unterminated reasoning span stays
// withheld. Close is idempotent.
func (s *Splitter) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if !s.inSpan {
		s.visible.WriteString(s.carry)
	}
	s.carry = ""
}

// Visible returns the accumulated user-facing text: everything fed so far
// with complete reasoning spans removed and any unterminated span withheld.
// Safe to call after every Feed; the result only ever grows.
func (s *Splitter) Visible() string {
	return s.visible.String()
}

// Reasoning returns the contents of the first completed reasoning span,
// whitespace-trimmed. ok is false until a closing delimiter has arrived.
func (s *Splitter) Reasoning() (reasoning string, ok bool) {
	if len(s.spans) == 0 {
		return "", false
	}
	return strings.TrimSpace(s.spans[0]), true
}

// Spans returns all completed reasoning spans in order, untrimmed.
func (s *Splitter) Spans() []string {
	out := make([]string, len(s.spans))
	copy(out, s.spans)
	return out
}

// Split separates a complete response in one call. It reports the visible
// text and the first reasoning span, matching the incremental result of
// feeding text and closing the stream.
func Split(text string) (visible, reasoning string) {
	s := NewSplitter()
	s.Feed(text)
	s.Close()
	reasoning, _ = s.Reasoning()
	return s.Visible(), reasoning
}

// partialTagLen reports the length of the longest proper suffix of s that
// is a prefix of tag. That suffix may become a delimiter once the next
// fragment arrives, so it must not be emitted yet.
func partialTagLen(s, tag string) int {
	maxLen := len(tag) - 1
	if len(s) < maxLen {
		maxLen = len(s)
	}
	for n := maxLen; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
