package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
)

const (
	fetchTimeout    = 30 * time.Second
	maxResponseSize = 10 << 20 // 10MB
	userAgent       = "deepseek-rag/1.0"
)

// fallbackSelectors are tried in order when readability extraction comes
// up empty, most specific first.
var fallbackSelectors = []string{"article", "main", ".content", ".post-content", "body"}

// IngestURL fetches a web page, extracts its readable content, and
// ingests it as a single document named by the URL.
func (ig *Ingestor) IngestURL(ctx context.Context, rawURL string) (int, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return 0, fmt.Errorf("url %q: scheme must be http or https", rawURL)
	}

	body, err := fetchPage(ctx, rawURL)
	if err != nil {
		return 0, err
	}

	text, err := extractText(body, parsed)
	if err != nil {
		return 0, fmt.Errorf("extract %q: %w", rawURL, err)
	}

	return ig.IngestText(ctx, rawURL, text, knowledge.SourceTypeURL)
}

// fetchPage downloads a page with a bounded response size.
func fetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", rawURL, err)
	}
	return body, nil
}

// extractText pulls the readable article text from an HTML page,
// preferring readability extraction and degrading to common content
// selectors.
func extractText(body []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	for _, selector := range fallbackSelectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text, nil
		}
	}
	return "", ErrNoContent
}
