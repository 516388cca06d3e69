package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdNews   = "news"
	cmdNotify = "notify"
)

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Send(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.ack(cb.ID, "")

	action, value, ok := strings.Cut(cb.Data, ":")
	if !ok || value == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"value", value,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdNews:
		b.handleNews(ctx, chatID, value)
	case cmdNotify:
		b.handleNotify(ctx, chatID, value)
	}
}

func categoryKeyboard(names []string, emoji func(string) string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, name := range names {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(emoji(name)+" "+categoryTitle(name), cmdNews+":"+name))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func notifyKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 On", cmdNotify+":on"),
			tgbotapi.NewInlineKeyboardButtonData("🔕 Off", cmdNotify+":off"),
		),
	)
}
