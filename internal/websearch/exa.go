// Package websearch grounds chat turns in live web results via the Exa
// search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultEndpoint = "https://api.exa.ai/search"
	requestTimeout  = 20 * time.Second
	maxResponseSize = 5 << 20 // 5MB
	// maxSnippetLen bounds how much of each result body goes into the
	// prompt context.
	maxSnippetLen = 2000
)

// DefaultNumResults matches the result count the prompt is sized for.
const DefaultNumResults = 5

// DefaultDomains restricts searches to sources that tend to survive
// readability extraction.
var DefaultDomains = []string{"arxiv.org", "wikipedia.org", "github.com", "medium.com"}

// ErrMissingAPIKey indicates the client was constructed without an Exa
// API key.
var ErrMissingAPIKey = errors.New("exa api key not configured")

// Config tunes the Exa client. Zero values take the defaults.
type Config struct {
	APIKey         string
	Endpoint       string
	NumResults     int
	IncludeDomains []string
}

// Client calls the Exa search API. It implements retrieval.WebSearcher.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates an Exa client. Returns ErrMissingAPIKey when no key is set
// so callers can disable the web tier instead of failing per turn.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = DefaultNumResults
	}
	if len(cfg.IncludeDomains) == 0 {
		cfg.IncludeDomains = DefaultDomains
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger,
	}, nil
}

type searchRequest struct {
	Query          string          `json:"query"`
	NumResults     int             `json:"numResults"`
	IncludeDomains []string        `json:"includeDomains,omitempty"`
	Contents       contentsRequest `json:"contents"`
}

type contentsRequest struct {
	Text bool `json:"text"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// Search runs one query and returns a formatted fragment per result.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	payload, err := json.Marshal(searchRequest{
		Query:          query,
		NumResults:     c.cfg.NumResults,
		IncludeDomains: c.cfg.IncludeDomains,
		Contents:       contentsRequest{Text: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exa search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read exa response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exa search: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode exa response: %w", err)
	}

	fragments := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if frag := formatResult(r); frag != "" {
			fragments = append(fragments, frag)
		}
	}
	c.logger.Debug("exa search complete", "query", query, "results", len(fragments))
	return fragments, nil
}

// formatResult renders one result as a prompt-ready fragment. Results
// without body text are dropped.
func formatResult(r searchResult) string {
	text := strings.TrimSpace(r.Text)
	if text == "" {
		return ""
	}
	text = truncate(text, maxSnippetLen)

	var b strings.Builder
	if r.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", r.Title)
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", r.URL)
	}
	b.WriteString(text)
	return b.String()
}

// truncate cuts s to at most n bytes, backing off to a rune boundary so
// the result stays valid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
