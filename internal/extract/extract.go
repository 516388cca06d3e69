// Package extract downloads article pages and pulls the readable body text
// out of them.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MinTextLength is the shortest body text accepted as an article.
const MinTextLength = 100

const maxPageBytes = 5 * 1024 * 1024

// Errors returned by Extract.
var (
	ErrNoContainer = errors.New("article container not found")
	ErrTooShort    = errors.New("article text too short")
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Rules describes where the article body lives in a page.
type Rules struct {
	// Container is a CSS selector; the first match is used. Empty means body.
	Container    string
	StripClasses []string
	StripTags    []string
}

// Extractor fetches pages and extracts their text.
type Extractor struct {
	client  HTTPClient
	timeout time.Duration
}

// New creates an Extractor with the given HTTP client.
func New(client HTTPClient) *Extractor {
	return &Extractor{client: client, timeout: 30 * time.Second}
}

// SetTimeout overrides the default 30-second page download timeout.
func (e *Extractor) SetTimeout(d time.Duration) {
	e.timeout = d
}

// Extract downloads pageURL and returns the cleaned body text.
func (e *Extractor) Extract(ctx context.Context, pageURL string, rules Rules) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NewsBot/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return Text(io.LimitReader(resp.Body, maxPageBytes), rules)
}

// Text parses an HTML document and returns the container text with the
// configured classes and tags removed and whitespace collapsed.
func Text(r io.Reader, rules Rules) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	selector := rules.Container
	if selector == "" {
		selector = "body"
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoContainer, selector)
	}

	for _, class := range rules.StripClasses {
		sel.Find("." + class).Remove()
	}
	for _, tag := range rules.StripTags {
		sel.Find(tag).Remove()
	}

	text := strings.Join(strings.Fields(sel.Text()), " ")
	if len([]rune(text)) < MinTextLength {
		return "", fmt.Errorf("%w: %d chars", ErrTooShort, len([]rune(text)))
	}
	return text, nil
}
