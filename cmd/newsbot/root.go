package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const defaultDatabasePath = "./data/newsbot.db"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "newsbot",
		Short:         "Per-recipient news digest bot for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newPurgeCommand())
	rootCmd.AddCommand(newSchedulesCommand())

	return rootCmd
}

// newLogger builds the process logger. format "auto" picks text on a
// terminal and JSON otherwise.
func newLogger(w *os.File, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "auto" {
		format = "json"
		if fd := w.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			format = "text"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// toolLogger is used by maintenance subcommands that do not need the full
// bot configuration.
func toolLogger() *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err != nil {
		lvl = slog.LevelInfo
	}
	format := os.Getenv("LOG_FORMAT")
	if format != "json" {
		format = "text"
	}
	return newLogger(os.Stderr, lvl, format)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
