package notify

import (
	"context"
	"errors"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramSink delivers reminders to a single Telegram chat. The bot is
// send-only: no poller is started.
type TelegramSink struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram: chat_id required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &TelegramSink{bot: b, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(s.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("telegram: send timed out")
	}
}
