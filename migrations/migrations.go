// Package migrations embeds the goose SQL migrations for the newsbot schema.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS

// Commands lists the goose commands accepted by Exec, in help order.
var Commands = []string{"up", "up-one", "down", "status", "version", "reset"}

func setup() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}

// Run applies all pending migrations to the given database.
func Run(db *sql.DB) error {
	if err := setup(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Exec runs a single goose command against db.
func Exec(db *sql.DB, command string) error {
	if err := setup(); err != nil {
		return err
	}

	var err error
	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}
