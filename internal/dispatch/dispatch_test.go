package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
)

type mockSender struct {
	mu    sync.Mutex
	errs  []error
	calls int
	texts []string
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.texts = append(m.texts, msg.Text)
	}
	return tgbotapi.Message{}, nil
}

func newTestDispatcher(api Sender) *Dispatcher {
	return New(api, Options{Attempts: 3, Backoff: time.Millisecond, Rate: 1000},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSendRetries(t *testing.T) {
	transient := errors.New("connection reset")
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
		permanent bool
	}{
		{name: "first attempt", errs: nil, wantCalls: 1},
		{name: "succeeds on third attempt", errs: []error{transient, transient}, wantCalls: 3},
		{name: "gives up after three attempts", errs: []error{transient, transient, transient, transient}, wantCalls: 3, wantErr: true},
		{
			name:      "forbidden is permanent",
			errs:      []error{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}},
			wantCalls: 1,
			wantErr:   true,
			permanent: true,
		},
		{
			name:      "rate limit is retried",
			errs:      []error{&tgbotapi.Error{Code: 429, Message: "Too Many Requests"}},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSender{errs: tt.errs}
			err := newTestDispatcher(api).Send(context.Background(), 1, "hello")

			if tt.wantErr != (err != nil) {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.permanent && !errors.Is(err, ErrPermanent) {
				t.Errorf("error %v should wrap ErrPermanent", err)
			}
			if diff := cmp.Diff(tt.wantCalls, api.calls); diff != "" {
				t.Errorf("call count mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSendChunksLongText(t *testing.T) {
	api := &mockSender{}
	text := strings.Repeat("line of text\n", 700)

	if err := newTestDispatcher(api).Send(context.Background(), 1, text); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(api.texts) < 2 {
		t.Fatalf("expected several chunks, got %d", len(api.texts))
	}
	var total int
	for _, chunk := range api.texts {
		if n := len([]rune(chunk)); n > MaxMessageLength {
			t.Errorf("chunk of %d runes exceeds limit", n)
		}
		total += strings.Count(chunk, "line of text")
	}
	if total != 700 {
		t.Errorf("lines delivered = %d, want 700", total)
	}
}

func TestSendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &mockSender{}
	if err := newTestDispatcher(api).Send(ctx, 1, "x"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "short", text: "abc", limit: 10, want: []string{"abc"}},
		{name: "hard cut", text: "abcdefghij", limit: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "newline preferred", text: "abcdef\ngh\nij", limit: 8, want: []string{"abcdef", "gh\nij"}},
		{name: "multibyte", text: "ééééé", limit: 2, want: []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Split(tt.text, tt.limit)); diff != "" {
				t.Errorf("Split mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type hungSender struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (h *hungSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	<-h.release
	return tgbotapi.Message{}, nil
}

func (h *hungSender) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func newHungSender(t *testing.T) *hungSender {
	h := &hungSender{release: make(chan struct{})}
	t.Cleanup(func() { close(h.release) })
	return h
}

func TestSendStopsAtContextDeadline(t *testing.T) {
	api := newHungSender(t)
	d := newTestDispatcher(api)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Send(ctx, 1, "hello")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if elapsed > time.Second {
		t.Errorf("Send returned after %v, want close to the 100ms deadline", elapsed)
	}
	if got := api.Calls(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestSendRetriesTimedOutAttempts(t *testing.T) {
	api := newHungSender(t)
	d := New(api, Options{Attempts: 2, Backoff: time.Millisecond, Rate: 1000, Timeout: 50 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Now()
	err := d.Send(context.Background(), 1, "hello")

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if errors.Is(err, ErrPermanent) {
		t.Error("timeout must not be permanent")
	}
	if got := api.Calls(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send took %v", elapsed)
	}
}
