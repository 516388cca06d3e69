package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"newsbot/internal/ledger"
	"newsbot/internal/storage"
)

func newPurgeCommand() *cobra.Command {
	var (
		dbPath    string
		olderThan time.Duration
		recipient int64
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete dedup ledger entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			store, err := storage.NewSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			var only *int64
			if cmd.Flags().Changed("recipient") {
				only = &recipient
			}
			cutoff := time.Now().Add(-olderThan)
			n, err := ledger.New(store, toolLogger()).Purge(cmd.Context(), cutoff, only)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d ledger entries sent before %s.\n", n, cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", defaultDatabasePath), "path to sqlite database")
	cmd.Flags().DurationVar(&olderThan, "older-than", ledger.DefaultRetention, "delete entries older than this")
	cmd.Flags().Int64Var(&recipient, "recipient", 0, "only purge entries of this recipient")
	return cmd
}
