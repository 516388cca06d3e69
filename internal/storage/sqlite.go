package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsbot/internal/model"
	"newsbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
// The pool is limited to one connection so that writers never contend
// and ":memory:" databases stay a single database.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeCategories(cats []string) string {
	return strings.Join(model.NormalizeCategories(cats), ",")
}

// decodeCategories accepts the comma-separated form and the JSON array
// form written by older deployments.
func decodeCategories(raw string) []string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var cats []string
		if err := json.Unmarshal([]byte(raw), &cats); err == nil {
			return model.NormalizeCategories(cats)
		}
		raw = strings.Trim(raw, "[]")
		raw = strings.ReplaceAll(raw, `"`, "")
	}
	return model.NormalizeCategories(strings.Split(raw, ","))
}

type scannable interface {
	Scan(dest ...any) error
}
