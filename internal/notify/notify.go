// Package notify posts operator reports to a Telegram chat.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxMessageLen = 4096

type Config struct {
	BotToken string `mapstructure:"botToken"`
	ChatID   int64  `mapstructure:"chatId"`
	Debug    bool   `mapstructure:"debug"`
}

// Enabled reports whether enough is configured to reach a chat.
func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChatID != 0
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	bot    sender
	chatID int64
}

func NewTelegramNotifier(cfg Config) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	bot.Debug = cfg.Debug

	return newTelegramNotifier(bot, cfg.ChatID), nil
}

func newTelegramNotifier(bot sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
	}
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen-1]) + "…"
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, string) error {
	return nil
}
