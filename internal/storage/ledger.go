package storage

import (
	"context"
	"fmt"
	"time"

	"newsbot/internal/model"
)

// IsSent checks whether a title was already delivered to a recipient.
func (s *SQLite) IsSent(ctx context.Context, recipientID int64, title string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_records WHERE recipient_id = ? AND title = ?`,
		recipientID, title,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return count > 0, nil
}

// RecordSent appends a ledger entry unless the same (recipient, title) pair
// is already present. It reports whether a new row was written.
func (s *SQLite) RecordSent(ctx context.Context, rec model.SentRecord) (bool, error) {
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_records (recipient_id, title, link, category, source, sent_at)
		 SELECT ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
		     SELECT 1 FROM sent_records WHERE recipient_id = ? AND title = ?
		 )`,
		rec.RecipientID, rec.Title, rec.Link, rec.Category, rec.Source, formatTime(sentAt),
		rec.RecipientID, rec.Title,
	)
	if err != nil {
		return false, fmt.Errorf("insert sent record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// PurgeSent deletes ledger entries strictly older than before, optionally
// limited to a single recipient.
func (s *SQLite) PurgeSent(ctx context.Context, before time.Time, recipientID *int64) (int64, error) {
	query := `DELETE FROM sent_records WHERE sent_at < ?`
	args := []any{formatTime(before)}
	if recipientID != nil {
		query += ` AND recipient_id = ?`
		args = append(args, *recipientID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sent records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListSent returns the most recent ledger entries of a recipient.
func (s *SQLite) ListSent(ctx context.Context, recipientID int64, limit int) ([]model.SentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT recipient_id, title, link, category, source, sent_at
		 FROM sent_records WHERE recipient_id = ?
		 ORDER BY sent_at DESC, id DESC LIMIT ?`,
		recipientID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query sent records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SentRecord
	for rows.Next() {
		var r model.SentRecord
		var sentAt string
		if err := rows.Scan(&r.RecipientID, &r.Title, &r.Link, &r.Category, &r.Source, &sentAt); err != nil {
			return nil, fmt.Errorf("scan sent record: %w", err)
		}
		r.SentAt = parseTime(sentAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
