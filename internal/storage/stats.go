package storage

import (
	"context"
	"fmt"
	"time"

	"newsbot/internal/model"
)

// RecordDelivery stores the outcome of a delivery run.
func (s *SQLite) RecordDelivery(ctx context.Context, st model.DeliveryStat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_stats (recipient_id, category, candidates, sent, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		st.RecipientID, st.Category, st.Candidates, st.Sent, formatTime(st.StartedAt), st.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery stat: %w", err)
	}
	return nil
}

// Stats returns aggregate counters. "Today" is the UTC day containing now.
func (s *SQLite) Stats(ctx context.Context, now time.Time) (model.Stats, error) {
	now = now.UTC()
	dayStart := formatTime(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	weekAgo := formatTime(now.AddDate(0, 0, -7))

	var st model.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM recipients),
		     (SELECT COUNT(*) FROM recipients WHERE created_at >= ?),
		     (SELECT COUNT(*) FROM recipients WHERE last_seen_at >= ?),
		     (SELECT COUNT(*) FROM preferences
		       WHERE notifications_enabled = 1
		         AND preferred_time IS NOT NULL AND preferred_time != ''),
		     (SELECT COUNT(*) FROM delivery_stats WHERE started_at >= ?),
		     (SELECT COALESCE(SUM(sent), 0) FROM delivery_stats WHERE started_at >= ?),
		     (SELECT COUNT(*) FROM sent_records)`,
		dayStart, weekAgo, dayStart, dayStart,
	).Scan(&st.TotalRecipients, &st.NewToday, &st.ActiveLastWeek, &st.Scheduled,
		&st.DeliveriesToday, &st.ArticlesToday, &st.LedgerSize)
	if err != nil {
		return model.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}
