package repository

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

type TelegramRepositoryer interface {
	SendMessage(chatID int64, text string) error
}

type TelegramRepository struct {
	bot *tele.Bot
}

// NewTelegramRepository は送信専用のボットを作る。ポーリングは行わない
func NewTelegramRepository(token string) (*TelegramRepository, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramRepository{bot: b}, nil
}

func (t *TelegramRepository) SendMessage(chatID int64, text string) error {
	if _, err := t.bot.Send(tele.ChatID(chatID), text, tele.ModeHTML); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
