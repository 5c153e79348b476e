// Package telegram adapts the Telegram Bot API to the chat abstraction.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nearbybot/pkg/chat"
)

// Adapter connects a Telegram bot to the chat abstraction: it converts
// incoming updates to chat.Events and implements chat.Sender.
type Adapter struct {
	bot         *tgbotapi.BotAPI
	pollTimeout time.Duration
}

// New creates an Adapter authenticated with the given bot token.
func New(token string, pollTimeout time.Duration) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &Adapter{bot: bot, pollTimeout: pollTimeout}, nil
}

// Events starts long polling and returns a channel of normalized events.
// The channel closes when ctx is cancelled.
func (a *Adapter) Events(ctx context.Context) <-chan chat.Event {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(a.pollTimeout.Seconds())
	updates := a.bot.GetUpdatesChan(cfg)

	out := make(chan chat.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				a.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := normalize(update)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					a.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// normalize maps a Telegram update onto a chat.Event. Updates the bot does
// not handle (edits, joins, stickers) are dropped.
func normalize(update tgbotapi.Update) (chat.Event, bool) {
	if cb := update.CallbackQuery; cb != nil && cb.Message != nil {
		return chat.Event{
			Kind:       chat.EventCallback,
			ChatID:     cb.Message.Chat.ID,
			Callback:   cb.Data,
			CallbackID: cb.ID,
		}, true
	}

	msg := update.Message
	if msg == nil {
		return chat.Event{}, false
	}

	switch {
	case msg.IsCommand():
		return chat.Event{
			Kind:    chat.EventCommand,
			ChatID:  msg.Chat.ID,
			Command: msg.Command(),
		}, true
	case msg.Location != nil:
		return chat.Event{
			Kind:   chat.EventLocation,
			ChatID: msg.Chat.ID,
			Lat:    msg.Location.Latitude,
			Lng:    msg.Location.Longitude,
		}, true
	case msg.Text != "":
		return chat.Event{
			Kind:   chat.EventText,
			ChatID: msg.Chat.ID,
			Text:   msg.Text,
		}, true
	}
	return chat.Event{}, false
}

// --- chat.Sender ---

func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := a.bot.Send(msg)
	return err
}

func (a *Adapter) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, kb chat.Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = inlineKeyboard(kb)
	_, err := a.bot.Send(msg)
	return err
}

func (a *Adapter) SendLocation(ctx context.Context, chatID int64, lat, lng float64) error {
	_, err := a.bot.Send(tgbotapi.NewLocation(chatID, lat, lng))
	return err
}

func (a *Adapter) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = caption
	_, err := a.bot.Send(doc)
	return err
}

func (a *Adapter) RequestLocation(ctx context.Context, chatID int64, text, buttonLabel string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation(buttonLabel)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	msg.ReplyMarkup = kb
	_, err := a.bot.Send(msg)
	return err
}

func (a *Adapter) AckCallback(ctx context.Context, callbackID string) error {
	_, err := a.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

func inlineKeyboard(kb chat.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
