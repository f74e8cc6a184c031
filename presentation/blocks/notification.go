package blocks

import (
	"fmt"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/slack-go/slack"
)

func sourceEmoji(source entity.NotificationSource) string {
	switch source {
	case entity.NotificationSourceDispatch:
		return ":rotating_light:"
	default:
		return ":information_source:"
	}
}

// Notification は通知1件分のDMブロック
func Notification(n entity.Notification) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("%s *%s*", sourceEmoji(n.Source), n.Title),
				false,
				false,
			),
			nil,
			nil,
		),
	}
	if n.Text != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", n.Text, false, false),
			nil,
			nil,
		))
	}
	if n.DutyActionID != 0 {
		blocks = append(blocks, slack.NewContextBlock(
			"",
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("Notification #%d. Reassign the duty with `POST /api/dispatch/duties/reassign_by_notification`.", n.ID),
				false,
				false,
			),
		))
	}
	return blocks
}
