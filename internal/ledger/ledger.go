// Package ledger records which titles each recipient already received.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsbot/internal/model"
)

// DefaultRetention is how long sent records are kept.
const DefaultRetention = 30 * 24 * time.Hour

// Backend is the subset of storage.Storage used by Ledger.
type Backend interface {
	IsSent(ctx context.Context, recipientID int64, title string) (bool, error)
	RecordSent(ctx context.Context, rec model.SentRecord) (bool, error)
	PurgeSent(ctx context.Context, before time.Time, recipientID *int64) (int64, error)
	ListSent(ctx context.Context, recipientID int64, limit int) ([]model.SentRecord, error)
}

// Ledger is the per-recipient dedup ledger keyed by exact title.
// Lookups fail open and writes fail closed.
type Ledger struct {
	backend Backend
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Ledger on top of backend.
func New(backend Backend, log *slog.Logger) *Ledger {
	return &Ledger{backend: backend, log: log, now: time.Now}
}

// WasSent reports whether title was already delivered to the recipient.
// Storage errors are logged and reported as not sent.
func (l *Ledger) WasSent(ctx context.Context, recipientID int64, title string) bool {
	sent, err := l.backend.IsSent(ctx, recipientID, title)
	if err != nil {
		l.log.Warn("ledger lookup failed", "recipient_id", recipientID, "title", title, "error", err)
		return false
	}
	return sent
}

// Record stores a successful delivery. It returns true only when a new
// entry was written.
func (l *Ledger) Record(ctx context.Context, rec model.SentRecord) bool {
	if rec.SentAt.IsZero() {
		rec.SentAt = l.now()
	}
	ok, err := l.backend.RecordSent(ctx, rec)
	if err != nil {
		l.log.Error("ledger record failed", "recipient_id", rec.RecipientID, "title", rec.Title, "error", err)
		return false
	}
	return ok
}

// Purge removes entries strictly older than olderThan, for one recipient
// when recipientID is non-nil, otherwise for everybody.
func (l *Ledger) Purge(ctx context.Context, olderThan time.Time, recipientID *int64) (int64, error) {
	n, err := l.backend.PurgeSent(ctx, olderThan, recipientID)
	if err != nil {
		return 0, fmt.Errorf("purge ledger: %w", err)
	}
	return n, nil
}

// History returns the latest titles delivered to a recipient.
func (l *Ledger) History(ctx context.Context, recipientID int64, limit int) ([]model.SentRecord, error) {
	return l.backend.ListSent(ctx, recipientID, limit)
}
