package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"newsbot/internal/model"
	"newsbot/internal/preferences"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to News Digest Bot!

I deliver short summaries of fresh articles from the categories you follow.

Quick start:
1. /news - get the latest news now
2. /time 08:00 - pick a daily delivery time
3. /notify on - turn daily delivery on

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `News:
/news [category] - deliver fresh articles now
/sources - list categories and their sources

Settings:
/settings - show your current settings
/categories <a,b,...> - choose categories for daily delivery
/time <HH:MM|off> - daily delivery time
/timezone <Area/City> - your timezone, e.g. Europe/London
/limit <1-50> - articles per category
/notify <on|off> - turn daily delivery on or off
/stop - stop daily deliveries`)
}

func (b *Bot) handleNews(ctx context.Context, chatID int64, args string) {
	cur := b.catalog.Current()
	if args == "" {
		b.replyWithKeyboard(chatID, "Choose a category:", categoryKeyboard(cur.Names(), cur.Emoji))
		return
	}
	name := strings.ToLower(strings.Fields(args)[0])
	if _, ok := cur.Category(name); !ok {
		b.reply(chatID, fmt.Sprintf("Unknown category %q. Available: %s", name, strings.Join(cur.Names(), ", ")))
		return
	}
	b.startRun(ctx, chatID, name)
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) {
	p := b.prefs.Get(ctx, chatID)
	var next *model.ScheduleInfo
	for _, info := range b.sched.List() {
		if info.RecipientID == chatID {
			next = &info
			break
		}
	}
	b.reply(chatID, FormatSettings(p, next, b.catalog.Current()))
}

func (b *Bot) handleCategories(ctx context.Context, chatID int64, args string) {
	cur := b.catalog.Current()
	cats, err := ParseCategoryList(args)
	if err != nil {
		p := b.prefs.Get(ctx, chatID)
		b.reply(chatID, fmt.Sprintf("Usage: /categories <a,b,...>\nYours: %s\nAvailable: %s",
			strings.Join(p.Categories, ", "), strings.Join(cur.Names(), ", ")))
		return
	}
	var unknown []string
	for _, c := range cats {
		if _, ok := cur.Category(c); !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		b.reply(chatID, fmt.Sprintf("Unknown categories: %s\nAvailable: %s",
			strings.Join(unknown, ", "), strings.Join(cur.Names(), ", ")))
		return
	}
	b.applyUpdate(ctx, chatID, model.PreferencesUpdate{Categories: &cats},
		"Daily categories set to: "+strings.Join(cats, ", "))
}

func (b *Bot) handleTime(ctx context.Context, chatID int64, args string) {
	clock, err := ParseTimeArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /time <HH:MM|off>, for example /time 08:30")
		return
	}
	text := "Daily delivery time cleared."
	if clock != "" {
		p := b.prefs.Get(ctx, chatID)
		text = fmt.Sprintf("Daily delivery time set to %s (%s).", clock, p.Timezone)
		if !p.Notifications {
			text += "\nDaily delivery is off, use /notify on to enable it."
		}
	}
	b.applyUpdate(ctx, chatID, model.PreferencesUpdate{PreferredTime: &clock}, text)
}

func (b *Bot) handleTimezone(ctx context.Context, chatID int64, args string) {
	tz := strings.TrimSpace(args)
	if tz == "" {
		p := b.prefs.Get(ctx, chatID)
		b.reply(chatID, fmt.Sprintf("Usage: /timezone <Area/City>\nCurrent timezone: %s", p.Timezone))
		return
	}
	b.applyUpdate(ctx, chatID, model.PreferencesUpdate{Timezone: &tz}, "Timezone set to "+tz+".")
}

func (b *Bot) handleLimit(ctx context.Context, chatID int64, args string) {
	n, err := ParseLimitArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /limit <1-%d>", model.MaxDailyLimit))
		return
	}
	b.applyUpdate(ctx, chatID, model.PreferencesUpdate{DailyLimit: &n},
		fmt.Sprintf("Up to %d articles per category.", n))
}

func (b *Bot) handleNotify(ctx context.Context, chatID int64, args string) {
	on, err := ParseToggle(args)
	if err != nil {
		b.replyWithKeyboard(chatID, "Daily delivery:", notifyKeyboard())
		return
	}
	text := "Daily delivery disabled."
	if on {
		p := b.prefs.Get(ctx, chatID)
		if p.PreferredTime == "" {
			text = "Daily delivery enabled. Set a time with /time HH:MM to start receiving it."
		} else {
			text = fmt.Sprintf("Daily delivery enabled at %s (%s).", p.PreferredTime, p.Timezone)
		}
	}
	b.applyUpdate(ctx, chatID, model.PreferencesUpdate{Notifications: &on}, text)
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	if err := b.prefs.Deactivate(ctx, chatID); err != nil {
		b.log.Error("deactivate recipient", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not stop deliveries, please try again.")
		return
	}
	b.sched.Remove(chatID)
	b.reply(chatID, "Daily deliveries stopped. Use /notify on to resume them.")
}

func (b *Bot) handleSources(chatID int64) {
	b.reply(chatID, FormatSources(b.catalog.Current()))
}

func (b *Bot) handleScheduled(chatID int64) {
	b.reply(chatID, FormatSchedules(b.sched.List(), b.now()))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	st, err := b.stats.Stats(ctx, b.now())
	if err != nil {
		b.log.Error("load stats", "error", err)
		b.reply(chatID, "Could not load statistics.")
		return
	}
	b.reply(chatID, FormatStats(st, len(b.sched.List())))
}

// applyUpdate stores a preference change and re-arms the recipient's timer.
func (b *Bot) applyUpdate(ctx context.Context, chatID int64, u model.PreferencesUpdate, okText string) {
	if err := b.prefs.Update(ctx, chatID, u); err != nil {
		b.reply(chatID, updateErrorText(err))
		if !isValidationError(err) {
			b.log.Error("update preferences", "chat_id", chatID, "error", err)
		}
		return
	}
	if err := b.sched.UpdateSchedule(ctx, chatID); err != nil {
		b.log.Warn("update schedule", "chat_id", chatID, "error", err)
	}
	b.reply(chatID, okText)
}

func isValidationError(err error) bool {
	return errors.Is(err, preferences.ErrInvalidTime) ||
		errors.Is(err, preferences.ErrInvalidTimezone) ||
		errors.Is(err, preferences.ErrInvalidLimit) ||
		errors.Is(err, preferences.ErrInvalidCategories)
}

func updateErrorText(err error) string {
	switch {
	case errors.Is(err, preferences.ErrInvalidTime):
		return "Invalid time. Use HH:MM, for example /time 08:30."
	case errors.Is(err, preferences.ErrInvalidTimezone):
		return "Unknown timezone. Use an IANA name such as Europe/London or America/New_York."
	case errors.Is(err, preferences.ErrInvalidLimit):
		return fmt.Sprintf("The limit must be between 1 and %d.", model.MaxDailyLimit)
	case errors.Is(err, preferences.ErrInvalidCategories):
		return "Choose at least one category."
	default:
		return "Could not save your settings, please try again."
	}
}
