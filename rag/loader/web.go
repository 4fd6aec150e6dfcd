package loader

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sheetflow-ai/sheetflow/rag"
)

// WebLoader fetches web pages and flattens them to text documents.
type WebLoader struct {
	urls   []string
	client *http.Client
}

// WebLoaderOption configures the WebLoader.
type WebLoaderOption func(*WebLoader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) WebLoaderOption {
	return func(l *WebLoader) {
		l.client = client
	}
}

// NewWebLoader creates a loader for the given page URLs.
func NewWebLoader(urls []string, opts ...WebLoaderOption) *WebLoader {
	l := &WebLoader{
		urls:   urls,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches every URL and returns one document per page.
func (l *WebLoader) Load(ctx context.Context) ([]rag.Document, error) {
	docs := make([]rag.Document, 0, len(l.urls))
	for _, pageURL := range l.urls {
		doc, err := l.loadPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (l *WebLoader) loadPage(ctx context.Context, pageURL string) (rag.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rag.Document{}, fmt.Errorf("fetch of %s returned status %d", pageURL, resp.StatusCode)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return rag.Document{}, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	page.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(page.Find("title").First().Text())
	text := collapseWhitespace(page.Find("body").Text())

	return rag.Document{
		ID:      pageURL,
		Content: text,
		Metadata: map[string]any{
			"source": pageURL,
			"title":  title,
			"type":   "web",
		},
	}, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ rag.DocumentLoader = (*WebLoader)(nil)
