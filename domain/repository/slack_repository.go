package repository

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Songmu/retry"
	ttlcache "github.com/jellydator/ttlcache/v3"
	"github.com/slack-go/slack"
)

var ErrSlackNotFound = fmt.Errorf("not found")

type SlackRepositoryer interface {
	GetUserIDByEmail(email string) (string, error)
	PostMessage(channelID string, opts ...slack.MsgOption) error
}

type SlackRepository struct {
	client       *slack.Client
	retryCount   uint
	retryWait    time.Duration
	userIDsCache *ttlcache.Cache[string, string]
}

func NewSlackRepository(client *slack.Client) *SlackRepository {
	r := &SlackRepository{
		client:       client,
		retryCount:   10,
		retryWait:    3 * time.Second,
		userIDsCache: ttlcache.New(ttlcache.WithTTL[string, string](time.Hour)),
	}
	go r.userIDsCache.Start()
	return r
}

func (h *SlackRepository) Stop() {
	h.userIDsCache.Stop()
}

// GetUserIDByEmail はメールアドレスから Slack のユーザーIDを引く
func (h *SlackRepository) GetUserIDByEmail(email string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return "", ErrSlackNotFound
	}
	if id := h.userIDsCache.Get(key); id != nil {
		return id.Value(), nil
	}
	user, err := h.client.GetUserByEmail(key)
	if err != nil {
		if err.Error() == "users_not_found" {
			return "", ErrSlackNotFound
		}
		return "", err
	}
	h.userIDsCache.Set(key, user.ID, ttlcache.DefaultTTL)
	return user.ID, nil
}

func (h *SlackRepository) PostMessage(channelID string, opts ...slack.MsgOption) error {
	err := retry.Retry(h.retryCount, h.retryWait, func() error {
		_, _, err := h.client.PostMessage(channelID, opts...)
		if err != nil {
			slog.Warn("PostMessage", slog.Any("channelID", channelID), slog.Any("err", err))
		}
		return err
	})
	if err != nil {
		slog.Error("Failed to PostMessage", slog.Any("err", err))
	}
	return err
}
