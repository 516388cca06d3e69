// Package fetcher downloads candidate news items from catalog sources.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newsbot/internal/catalog"
	"newsbot/internal/model"
)

const (
	// DefaultNewsdataURL is the newsdata.io news endpoint.
	DefaultNewsdataURL = "https://newsdata.io/api/1/news"

	userAgent    = "NewsBot/1.0"
	maxBodyBytes = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher retrieves candidates from newsdata.io and RSS/Atom feeds.
type Fetcher struct {
	client      HTTPClient
	timeout     time.Duration
	newsdataKey string
	newsdataURL string
}

// New creates a Fetcher with the given HTTP client and newsdata.io API key.
func New(client HTTPClient, newsdataKey string) *Fetcher {
	return &Fetcher{
		client:      client,
		timeout:     30 * time.Second,
		newsdataKey: newsdataKey,
		newsdataURL: DefaultNewsdataURL,
	}
}

// SetTimeout overrides the default 30-second request timeout.
func (f *Fetcher) SetTimeout(d time.Duration) {
	f.timeout = d
}

// SetNewsdataURL overrides the newsdata.io endpoint.
func (f *Fetcher) SetNewsdataURL(u string) {
	f.newsdataURL = u
}

// Fetch returns the candidates currently offered by src for category.
func (f *Fetcher) Fetch(ctx context.Context, category string, src catalog.Source) ([]model.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	switch src.Kind {
	case catalog.KindRSS:
		return f.fetchRSS(ctx, category, src)
	default:
		return f.fetchNewsdata(ctx, category, src)
	}
}

type newsdataResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		SourceID string `json:"source_id"`
	} `json:"results"`
}

func (f *Fetcher) fetchNewsdata(ctx context.Context, category string, src catalog.Source) ([]model.Candidate, error) {
	if f.newsdataKey == "" {
		return nil, fmt.Errorf("newsdata api key is not configured")
	}
	q := url.Values{}
	q.Set("apikey", f.newsdataKey)
	q.Set("category", category)
	q.Set("language", "en")
	q.Set("domain", src.NewsdataDomain())

	body, err := f.get(ctx, f.newsdataURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp newsdataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode newsdata response: %w", err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, fmt.Errorf("newsdata status %q", resp.Status)
	}

	out := make([]model.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, model.Candidate{
			Title:      r.Title,
			Link:       r.Link,
			SourceKey:  src.Key,
			SourceName: src.Name,
			Category:   category,
		})
	}
	return out, nil
}

func (f *Fetcher) fetchRSS(ctx context.Context, category string, src catalog.Source) ([]model.Candidate, error) {
	body, err := f.get(ctx, src.FeedURL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := make([]model.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, model.Candidate{
			Title:      strings.TrimSpace(item.Title),
			Link:       item.Link,
			SourceKey:  src.Key,
			SourceName: src.Name,
			Category:   category,
		})
	}
	return out, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
