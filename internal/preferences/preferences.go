// Package preferences exposes recipient settings with safe defaults and
// validated partial updates.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newsbot/internal/model"
	"newsbot/internal/storage"
)

// Validation errors returned by Update.
var (
	ErrInvalidTime       = errors.New("invalid preferred time")
	ErrInvalidTimezone   = errors.New("invalid timezone")
	ErrInvalidLimit      = errors.New("invalid daily limit")
	ErrInvalidCategories = errors.New("invalid categories")
)

// Backend is the subset of storage.Storage used by Store.
type Backend interface {
	UpsertRecipient(ctx context.Context, r *model.Recipient) (bool, error)
	DeactivateRecipient(ctx context.Context, id int64) error
	GetPreferences(ctx context.Context, recipientID int64) (*model.Preferences, error)
	UpdatePreferences(ctx context.Context, recipientID int64, u model.PreferencesUpdate) error
	ListSchedulable(ctx context.Context) ([]model.Preferences, error)
	MarkScheduled(ctx context.Context, recipientID int64, at time.Time) error
}

// Store is the preference store used by the scheduler, delivery runs and
// the bot.
type Store struct {
	backend Backend
	log     *slog.Logger
}

// New creates a Store on top of backend.
func New(backend Backend, log *slog.Logger) *Store {
	return &Store{backend: backend, log: log}
}

// Get returns the recipient's preferences. It never fails: a missing row or
// a storage error yields the defaults.
func (s *Store) Get(ctx context.Context, recipientID int64) model.Preferences {
	p, err := s.backend.GetPreferences(ctx, recipientID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("load preferences, using defaults", "recipient_id", recipientID, "error", err)
		}
		return model.DefaultPreferences(recipientID)
	}
	if p.DailyLimit <= 0 {
		p.DailyLimit = model.DefaultDailyLimit
	}
	if p.Timezone == "" {
		p.Timezone = model.DefaultTimezone
	}
	return *p
}

// Update validates and applies a partial update. Unset fields keep their
// current values; the row is created when it does not exist yet.
func (s *Store) Update(ctx context.Context, recipientID int64, u model.PreferencesUpdate) error {
	if err := validate(&u); err != nil {
		return err
	}
	if u.Empty() {
		return nil
	}
	if err := s.backend.UpdatePreferences(ctx, recipientID, u); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return nil
}

// Register creates the recipient on first contact and refreshes its
// identity metadata afterwards.
func (s *Store) Register(ctx context.Context, r model.Recipient) error {
	created, err := s.backend.UpsertRecipient(ctx, &r)
	if err != nil {
		return fmt.Errorf("register recipient: %w", err)
	}
	if created {
		s.log.Info("new recipient", "recipient_id", r.ID, "username", r.Username)
	}
	return nil
}

// Deactivate marks the recipient inactive and disables its notifications.
func (s *Store) Deactivate(ctx context.Context, recipientID int64) error {
	if err := s.backend.DeactivateRecipient(ctx, recipientID); err != nil {
		return fmt.Errorf("deactivate recipient: %w", err)
	}
	return nil
}

// ListSchedulable returns every recipient that should have a daily timer.
func (s *Store) ListSchedulable(ctx context.Context) ([]model.Preferences, error) {
	return s.backend.ListSchedulable(ctx)
}

// MarkScheduled records the nominal time of a scheduled delivery that started.
func (s *Store) MarkScheduled(ctx context.Context, recipientID int64, at time.Time) error {
	return s.backend.MarkScheduled(ctx, recipientID, at)
}

func validate(u *model.PreferencesUpdate) error {
	if u.PreferredTime != nil && *u.PreferredTime != "" {
		h, m, err := model.ParseClock(*u.PreferredTime)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTime, err)
		}
		clock := model.FormatClock(h, m)
		u.PreferredTime = &clock
	}
	if u.Timezone != nil {
		if *u.Timezone == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidTimezone)
		}
		if _, err := time.LoadLocation(*u.Timezone); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTimezone, err)
		}
	}
	if u.DailyLimit != nil && (*u.DailyLimit < 1 || *u.DailyLimit > model.MaxDailyLimit) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidLimit, *u.DailyLimit, model.MaxDailyLimit)
	}
	if u.Categories != nil {
		cats := model.NormalizeCategories(*u.Categories)
		if len(cats) == 0 {
			return fmt.Errorf("%w: at least one category is required", ErrInvalidCategories)
		}
		u.Categories = &cats
	}
	return nil
}
