// Package summarize condenses article text through the TextGears API.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultEndpoint is the TextGears summarization endpoint.
	DefaultEndpoint = "https://api.textgears.com/summarize"

	// MaxInputLength is the number of characters sent for summarization.
	MaxInputLength = 5000
)

// ErrEmptySummary is returned when the API answers without a summary.
var ErrEmptySummary = errors.New("empty summary")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the summarization API with bounded retries.
type Client struct {
	client   HTTPClient
	apiKey   string
	endpoint string
	timeout  time.Duration
	attempts uint64
	backoff  time.Duration
}

// New creates a Client for the given API key.
func New(client HTTPClient, apiKey string) *Client {
	return &Client{
		client:   client,
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		timeout:  30 * time.Second,
		attempts: 3,
		backoff:  time.Second,
	}
}

// SetEndpoint overrides the API endpoint.
func (c *Client) SetEndpoint(u string) { c.endpoint = u }

// SetRetry sets the number of attempts and the base backoff between them.
func (c *Client) SetRetry(attempts int, backoff time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	c.attempts = uint64(attempts)
	c.backoff = backoff
}

type apiResponse struct {
	Status      bool   `json:"status"`
	Description string `json:"description"`
	Response    struct {
		Summary []string `json:"summary"`
	} `json:"response"`
}

// Summarize returns a short summary of text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("textgears api key is not configured")
	}
	text = Truncate(text, MaxInputLength)

	b := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(c.backoff))

	var summary string
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := c.call(ctx, text)
		if err != nil {
			var perm permanentError
			if errors.As(err, &perm) {
				return perm.err
			}
			return retry.RetryableError(err)
		}
		summary = s
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }

func (c *Client) call(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", permanentError{fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", permanentError{fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !out.Status {
		return "", fmt.Errorf("api error: %s", out.Description)
	}

	summary := strings.TrimSpace(strings.Join(out.Response.Summary, " "))
	if summary == "" {
		return "", permanentError{ErrEmptySummary}
	}
	return summary, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
