// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"newsbot/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	UpsertRecipient(ctx context.Context, r *model.Recipient) (created bool, err error)
	GetRecipient(ctx context.Context, id int64) (*model.Recipient, error)
	DeactivateRecipient(ctx context.Context, id int64) error

	GetPreferences(ctx context.Context, recipientID int64) (*model.Preferences, error)
	UpdatePreferences(ctx context.Context, recipientID int64, u model.PreferencesUpdate) error
	ListSchedulable(ctx context.Context) ([]model.Preferences, error)
	MarkScheduled(ctx context.Context, recipientID int64, at time.Time) error

	IsSent(ctx context.Context, recipientID int64, title string) (bool, error)
	RecordSent(ctx context.Context, rec model.SentRecord) (bool, error)
	PurgeSent(ctx context.Context, before time.Time, recipientID *int64) (int64, error)
	ListSent(ctx context.Context, recipientID int64, limit int) ([]model.SentRecord, error)

	RecordDelivery(ctx context.Context, st model.DeliveryStat) error
	Stats(ctx context.Context, now time.Time) (model.Stats, error)

	Close() error
}
