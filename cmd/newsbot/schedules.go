package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"newsbot/internal/catalog"
	"newsbot/internal/model"
	"newsbot/internal/preferences"
	"newsbot/internal/scheduler"
	"newsbot/internal/storage"
)

func newSchedulesCommand() *cobra.Command {
	var dbPath, sourcesFile string

	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List armed daily deliveries and their next firing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := toolLogger()

			store, err := storage.NewSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			cat, err := catalog.NewProvider(sourcesFile, log)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			sched := scheduler.New(preferences.New(store, log), nil, nil, cat, scheduler.Options{}, log)
			if err := sched.Load(cmd.Context()); err != nil {
				return err
			}
			renderSchedules(cmd.OutOrStdout(), sched.List(), time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", envOrDefault("DATABASE_PATH", defaultDatabasePath), "path to sqlite database")
	cmd.Flags().StringVar(&sourcesFile, "sources", envOrDefault("SOURCES_FILE", ""), "catalog file (built-in when empty)")
	return cmd
}

func renderSchedules(w io.Writer, list []model.ScheduleInfo, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No daily deliveries are scheduled.")
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Recipient", "Time", "Timezone", "Next fire (UTC)", "In", "Categories"})
	for _, s := range list {
		tw.AppendRow(table.Row{
			strconv.FormatInt(s.RecipientID, 10),
			s.Time,
			s.Timezone,
			s.NextFire.UTC().Format("2006-01-02 15:04"),
			humanize.RelTime(s.NextFire, now, "ago", "from now"),
			strings.Join(s.Categories, ", "),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	tw.AppendFooter(table.Row{"", "", "", "", "Total", len(list)})
	tw.Render()
}
