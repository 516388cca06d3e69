package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbot/internal/catalog"
	"newsbot/internal/config"
	"newsbot/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Preferences manages recipients and their settings.
type Preferences interface {
	Get(ctx context.Context, recipientID int64) model.Preferences
	Update(ctx context.Context, recipientID int64, u model.PreferencesUpdate) error
	Register(ctx context.Context, r model.Recipient) error
	Deactivate(ctx context.Context, recipientID int64) error
}

// Scheduler keeps the daily timers in sync with preferences.
type Scheduler interface {
	UpdateSchedule(ctx context.Context, recipientID int64) error
	Remove(recipientID int64) bool
	List() []model.ScheduleInfo
}

// Runner performs an on-demand delivery run.
type Runner interface {
	Run(ctx context.Context, recipientID int64, category string) int
}

// StatsSource reports aggregate usage counters.
type StatsSource interface {
	Stats(ctx context.Context, now time.Time) (model.Stats, error)
}

// Deps are the collaborators a Bot drives.
type Deps struct {
	Preferences Preferences
	Scheduler   Scheduler
	Runner      Runner
	Stats       StatsSource
	Catalog     *catalog.Provider
}

// Bot is the Telegram front end: it handles user commands and starts
// on-demand deliveries.
type Bot struct {
	api     telegramAPI
	prefs   Preferences
	sched   Scheduler
	runner  Runner
	stats   StatsSource
	catalog *catalog.Provider
	cfg     *config.Config
	log     *slog.Logger
	now     func() time.Time

	runs sync.WaitGroup
}

// New creates a Bot on top of an authorized Telegram API client.
func New(api *tgbotapi.BotAPI, deps Deps, cfg *config.Config, log *slog.Logger) *Bot {
	return newBot(api, deps, cfg, log)
}

func newBot(api telegramAPI, deps Deps, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		api:     api,
		prefs:   deps.Preferences,
		sched:   deps.Scheduler,
		runner:  deps.Runner,
		stats:   deps.Stats,
		catalog: deps.Catalog,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled
// and every on-demand delivery it started has returned.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.runs.Wait()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	if msg.From != nil && !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	b.register(ctx, msg)
	b.handleCommand(ctx, msg)
}

// register records the recipient on every command so that last-seen stays
// current and a stopped recipient becomes active again.
func (b *Bot) register(ctx context.Context, msg *tgbotapi.Message) {
	r := model.Recipient{ID: msg.Chat.ID, Username: msg.Chat.UserName}
	if msg.From != nil {
		r.Username = msg.From.UserName
		r.DisplayName = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	if err := b.prefs.Register(ctx, r); err != nil {
		b.log.Error("register recipient", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdNews:
		b.handleNews(ctx, chatID, args)
	case "settings":
		b.handleSettings(ctx, chatID)
	case "categories":
		b.handleCategories(ctx, chatID, args)
	case "time":
		b.handleTime(ctx, chatID, args)
	case "timezone":
		b.handleTimezone(ctx, chatID, args)
	case "limit":
		b.handleLimit(ctx, chatID, args)
	case cmdNotify:
		b.handleNotify(ctx, chatID, args)
	case "stop":
		b.handleStop(ctx, chatID)
	case "sources":
		b.handleSources(chatID)
	case "scheduled", "status":
		if msg.From == nil || !b.cfg.IsAdmin(msg.From.ID) {
			b.reply(chatID, "This command is available to administrators only.")
			return
		}
		if cmd == "scheduled" {
			b.handleScheduled(chatID)
		} else {
			b.handleStatus(ctx, chatID)
		}
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

// startRun delivers category to chatID in the background.
func (b *Bot) startRun(ctx context.Context, chatID int64, category string) {
	cur := b.catalog.Current()
	b.reply(chatID, cur.Emoji(category)+" Fetching the latest "+category+" news, this can take a minute...")

	b.runs.Add(1)
	go func() {
		defer b.runs.Done()
		defer func() {
			if p := recover(); p != nil {
				b.log.Error("on-demand delivery panicked", "chat_id", chatID, "category", category,
					"panic", p, "stack", string(debug.Stack()))
			}
		}()
		sent := b.runner.Run(ctx, chatID, category)
		b.log.Info("on-demand delivery finished", "chat_id", chatID, "category", category, "sent", sent)
	}()
}

// Wait blocks until every on-demand delivery has returned.
func (b *Bot) Wait() {
	b.runs.Wait()
}
