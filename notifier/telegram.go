package notifier

import (
	"context"
	"html"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
)

type TelegramChannel struct {
	telegram repository.TelegramRepositoryer
}

func NewTelegramChannel(r repository.TelegramRepositoryer) *TelegramChannel {
	return &TelegramChannel{telegram: r}
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

func (c *TelegramChannel) Send(_ context.Context, user entity.User, n entity.Notification) error {
	if user.TelegramID == 0 {
		return nil
	}
	text := "<b>" + html.EscapeString(n.Title) + "</b>"
	if n.Text != "" {
		text += "\n" + html.EscapeString(n.Text)
	}
	return c.telegram.SendMessage(user.TelegramID, text)
}
