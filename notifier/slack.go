package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/presentation/blocks"
	"github.com/slack-go/slack"
)

// SlackChannel は通知を Slack の DM として送る
type SlackChannel struct {
	slack repository.SlackRepositoryer
}

func NewSlackChannel(r repository.SlackRepositoryer) *SlackChannel {
	return &SlackChannel{slack: r}
}

func (c *SlackChannel) Name() string {
	return "slack"
}

func (c *SlackChannel) Send(_ context.Context, user entity.User, n entity.Notification) error {
	slackID := user.SlackID
	if slackID == "" {
		if user.Email == "" {
			return nil
		}
		id, err := c.slack.GetUserIDByEmail(user.Email)
		if errors.Is(err, repository.ErrSlackNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lookup slack user %s: %w", user.Email, err)
		}
		slackID = id
	}
	return c.slack.PostMessage(
		slackID,
		slack.MsgOptionText(n.Title, false),
		slack.MsgOptionBlocks(blocks.Notification(n)...),
	)
}
