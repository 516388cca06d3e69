package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"newsbot/migrations"
)

func newMigrateCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:       "migrate <command>",
		Short:     "Manage database schema migrations",
		Long:      "Commands: " + strings.Join(migrations.Commands, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: migrations.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sql.Open("sqlite", dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			return migrations.Exec(db, args[0])
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", defaultDatabasePath), "path to sqlite database")
	return cmd
}
