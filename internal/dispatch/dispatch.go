// Package dispatch delivers text messages to Telegram chats with chunking,
// rate limiting and bounded retries.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// MaxMessageLength is the largest chunk sent in a single Telegram message.
const MaxMessageLength = 4000

// ErrPermanent marks send failures that retrying cannot fix.
var ErrPermanent = errors.New("permanent send failure")

// Sender is the part of the Telegram API used for delivery.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Options tune a Dispatcher.
type Options struct {
	Attempts int
	Backoff  time.Duration
	// Rate is the number of messages allowed per second across all chats.
	Rate float64
	// Timeout bounds a single send attempt. Zero leaves attempts bounded
	// only by the caller's context.
	Timeout time.Duration
}

// Dispatcher sends messages through a Sender.
type Dispatcher struct {
	api      Sender
	limiter  *rate.Limiter
	attempts uint64
	backoff  time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

// New creates a Dispatcher. Zero options fall back to 3 attempts, a 1s
// base backoff and 25 messages per second.
func New(api Sender, opts Options, log *slog.Logger) *Dispatcher {
	if opts.Attempts < 1 {
		opts.Attempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.Rate <= 0 {
		opts.Rate = 25
	}
	burst := max(int(opts.Rate), 1)
	return &Dispatcher{
		api:      api,
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), burst),
		attempts: uint64(opts.Attempts),
		backoff:  opts.Backoff,
		timeout:  opts.Timeout,
		log:      log,
	}
}

// Send delivers text to chatID, split into chunks when it is too long.
// It returns nil only when every chunk was accepted.
func (d *Dispatcher) Send(ctx context.Context, chatID int64, text string) error {
	for i, chunk := range Split(text, MaxMessageLength) {
		if err := d.sendChunk(ctx, chatID, chunk); err != nil {
			return fmt.Errorf("send chunk %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *Dispatcher) sendChunk(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	b := retry.WithMaxRetries(d.attempts-1, retry.NewExponential(d.backoff))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		err := d.send(ctx, msg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			d.log.Warn("send timed out, retrying", "chat_id", chatID, "attempt", attempt, "timeout", d.timeout)
			return retry.RetryableError(err)
		}

		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			switch {
			case tgErr.Code == http.StatusTooManyRequests:
				wait := time.Duration(tgErr.RetryAfter) * time.Second
				d.log.Warn("telegram rate limit", "chat_id", chatID, "retry_after", wait, "attempt", attempt)
				if err := sleep(ctx, wait); err != nil {
					return err
				}
				return retry.RetryableError(err)
			case tgErr.Code >= 400 && tgErr.Code < 500:
				return fmt.Errorf("%w: %w", ErrPermanent, err)
			}
		}

		d.log.Warn("send failed, retrying", "chat_id", chatID, "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

// send runs one API call, returning early when ctx is done or the attempt
// timeout passes. An abandoned call finishes in the background.
func (d *Dispatcher) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Split breaks text into chunks of at most limit runes, preferring to cut
// at line breaks.
func Split(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		if i := lastNewline(runes[:limit]); i > limit/2 {
			cut = i + 1
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastNewline(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == '\n' {
			return i
		}
	}
	return -1
}
