package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"newsbot/internal/bot"
	"newsbot/internal/catalog"
	"newsbot/internal/config"
	"newsbot/internal/delivery"
	"newsbot/internal/dispatch"
	"newsbot/internal/extract"
	"newsbot/internal/fetcher"
	"newsbot/internal/ledger"
	"newsbot/internal/pipeline"
	"newsbot/internal/preferences"
	"newsbot/internal/retention"
	"newsbot/internal/scheduler"
	"newsbot/internal/storage"
	"newsbot/internal/summarize"
)

const (
	shutdownTimeout = 30 * time.Second
	// longPollTimeout matches the getUpdates timeout used by the bot.
	longPollTimeout = 60 * time.Second
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the daily scheduler and ledger retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	log := newLogger(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(log)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	lock := flock.New(cfg.DatabasePath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another newsbot instance is already running")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("release lock", "error", err)
		}
	}()

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() { _ = store.Close() }()

	cat, err := catalog.NewProvider(cfg.SourcesFile, log)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	tgClient := &http.Client{Timeout: longPollTimeout + cfg.HTTPTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, tgClient)
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}
	log.Info("authorized on telegram", "username", api.Self.UserName)

	if cfg.NewsdataAPIKey == "" {
		log.Warn("NEWSDATA_API_KEY is not set, newsdata sources will fail")
	}
	if cfg.TextGearsAPIKey == "" {
		log.Warn("TEXTGEARS_API_KEY is not set, articles cannot be summarized")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	f := fetcher.New(httpClient, cfg.NewsdataAPIKey)
	f.SetTimeout(cfg.HTTPTimeout)
	ex := extract.New(httpClient)
	ex.SetTimeout(cfg.HTTPTimeout)
	sum := summarize.New(httpClient, cfg.TextGearsAPIKey)

	prefs := preferences.New(store, log)
	led := ledger.New(store, log)
	sender := dispatch.New(api, dispatch.Options{
		Attempts: cfg.SendAttempts,
		Rate:     cfg.SendRate,
		Timeout:  cfg.HTTPTimeout,
	}, log)
	runner := delivery.New(cat, f, led, prefs, pipeline.New(cat, ex, sum, log), sender, store,
		delivery.Options{Pacing: cfg.ItemPacing}, log)
	sched := scheduler.New(prefs, runner, sender, cat,
		scheduler.Options{Grace: cfg.MisfireGrace, CategoryPause: cfg.CategoryPause}, log)
	b := bot.New(api, bot.Deps{
		Preferences: prefs,
		Scheduler:   sched,
		Runner:      runner,
		Stats:       store,
		Catalog:     cat,
	}, cfg, log)
	janitor := retention.New(led, cfg.Retention, log)
	janitor.SetTickInterval(cfg.PurgeInterval)

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var wg sync.WaitGroup
	wg.Go(func() { cat.Watch(ctx) })
	wg.Go(func() { janitor.Run(ctx) })

	sdNotify(log, daemon.SdNotifyReady)
	log.Info("newsbot started", "database", cfg.DatabasePath, "schedules", len(sched.List()))

	b.Run(ctx)

	sdNotify(log, daemon.SdNotifyStopping)
	log.Info("shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Warn("stop scheduler", "error", err)
	}
	wg.Wait()

	log.Info("newsbot stopped")
	return nil
}

func sdNotify(log *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("notify systemd", "state", state, "error", err)
		return
	}
	if sent {
		log.Debug("notified systemd", "state", state)
	}
}
