package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newsbot/internal/model"
)

// UpsertRecipient registers a recipient or refreshes its identity metadata.
// Default preferences are created together with a new recipient.
func (s *SQLite) UpsertRecipient(ctx context.Context, r *model.Recipient) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recipients WHERE recipient_id = ?`, r.ID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recipient: %w", err)
	}

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipients (recipient_id, username, display_name, created_at, last_seen_at, active)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT (recipient_id) DO UPDATE SET
		     username = excluded.username,
		     display_name = excluded.display_name,
		     last_seen_at = excluded.last_seen_at,
		     active = 1`,
		r.ID, r.Username, r.DisplayName, now, now,
	); err != nil {
		return false, fmt.Errorf("upsert recipient: %w", err)
	}

	if err := insertDefaultPreferences(ctx, tx, r.ID, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return exists == 0, nil
}

// GetRecipient returns a single recipient by ID.
func (s *SQLite) GetRecipient(ctx context.Context, id int64) (*model.Recipient, error) {
	var r model.Recipient
	var active int
	var created, seen string
	err := s.db.QueryRowContext(ctx,
		`SELECT recipient_id, username, display_name, active, created_at, last_seen_at
		 FROM recipients WHERE recipient_id = ?`, id,
	).Scan(&r.ID, &r.Username, &r.DisplayName, &active, &created, &seen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recipient: %w", err)
	}
	r.Active = active == 1
	r.CreatedAt = parseTime(created)
	r.LastSeenAt = parseTime(seen)
	return &r, nil
}

// DeactivateRecipient marks a recipient inactive and turns notifications off.
func (s *SQLite) DeactivateRecipient(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE recipients SET active = 0 WHERE recipient_id = ?`, id,
	); err != nil {
		return fmt.Errorf("deactivate recipient: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE preferences SET notifications_enabled = 0, updated_at = ? WHERE recipient_id = ?`,
		formatTime(time.Now()), id,
	); err != nil {
		return fmt.Errorf("disable notifications: %w", err)
	}
	return tx.Commit()
}

// GetPreferences returns the stored preferences of a recipient.
func (s *SQLite) GetPreferences(ctx context.Context, recipientID int64) (*model.Preferences, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT recipient_id, categories, preferred_time, timezone, daily_limit,
		        notifications_enabled, last_scheduled_at, updated_at
		 FROM preferences WHERE recipient_id = ?`, recipientID,
	)
	p, err := scanPreferences(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// UpdatePreferences applies a partial update, creating the row if needed.
func (s *SQLite) UpdatePreferences(ctx context.Context, recipientID int64, u model.PreferencesUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	if err := insertDefaultPreferences(ctx, tx, recipientID, now); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{now}
	if u.Categories != nil {
		sets = append(sets, "categories = ?")
		args = append(args, encodeCategories(*u.Categories))
	}
	if u.PreferredTime != nil {
		sets = append(sets, "preferred_time = ?")
		if *u.PreferredTime == "" {
			args = append(args, nil)
		} else {
			args = append(args, *u.PreferredTime)
		}
	}
	if u.Timezone != nil {
		sets = append(sets, "timezone = ?")
		args = append(args, *u.Timezone)
	}
	if u.DailyLimit != nil {
		sets = append(sets, "daily_limit = ?")
		args = append(args, *u.DailyLimit)
	}
	if u.Notifications != nil {
		sets = append(sets, "notifications_enabled = ?")
		args = append(args, boolToInt(*u.Notifications))
	}
	args = append(args, recipientID)

	query := `UPDATE preferences SET ` + strings.Join(sets, ", ") + ` WHERE recipient_id = ?`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return tx.Commit()
}

// ListSchedulable returns preferences of active recipients that asked for
// a daily delivery.
func (s *SQLite) ListSchedulable(ctx context.Context) ([]model.Preferences, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.recipient_id, p.categories, p.preferred_time, p.timezone, p.daily_limit,
		        p.notifications_enabled, p.last_scheduled_at, p.updated_at
		 FROM preferences p
		 LEFT JOIN recipients r ON r.recipient_id = p.recipient_id
		 WHERE p.notifications_enabled = 1
		   AND p.preferred_time IS NOT NULL AND p.preferred_time != ''
		   AND COALESCE(r.active, 1) = 1
		 ORDER BY p.recipient_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query schedulable: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Preferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MarkScheduled stamps the nominal time of the latest scheduled delivery.
func (s *SQLite) MarkScheduled(ctx context.Context, recipientID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE preferences SET last_scheduled_at = ? WHERE recipient_id = ?`,
		formatTime(at), recipientID,
	)
	if err != nil {
		return fmt.Errorf("mark scheduled: %w", err)
	}
	return nil
}

func insertDefaultPreferences(ctx context.Context, tx *sql.Tx, recipientID int64, now string) error {
	def := model.DefaultPreferences(recipientID)
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO preferences
		     (recipient_id, categories, timezone, daily_limit, notifications_enabled, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		recipientID, encodeCategories(def.Categories), def.Timezone, def.DailyLimit,
		boolToInt(def.Notifications), now,
	)
	if err != nil {
		return fmt.Errorf("insert default preferences: %w", err)
	}
	return nil
}

func scanPreferences(row scannable) (*model.Preferences, error) {
	var p model.Preferences
	var categories, updated string
	var preferredTime, lastScheduled sql.NullString
	var notifications int
	err := row.Scan(&p.RecipientID, &categories, &preferredTime, &p.Timezone, &p.DailyLimit,
		&notifications, &lastScheduled, &updated)
	if err != nil {
		return nil, fmt.Errorf("scan preferences: %w", err)
	}
	p.Categories = decodeCategories(categories)
	p.PreferredTime = preferredTime.String
	p.Notifications = notifications == 1
	if lastScheduled.Valid {
		t := parseTime(lastScheduled.String)
		p.LastScheduledAt = &t
	}
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}
