package entity

import "strings"

type User struct {
	ID              int64  `mapstructure:"id" validate:"required" json:"id"`
	Username        string `mapstructure:"username" validate:"required" json:"username"`
	FirstName       string `mapstructure:"first_name" json:"first_name"`
	LastName        string `mapstructure:"last_name" json:"last_name"`
	Email           string `mapstructure:"email" validate:"omitempty,email" json:"email,omitempty"`
	SlackID         string `mapstructure:"slack_id" json:"slack_id,omitempty"`
	TelegramID      int64  `mapstructure:"telegram_id" json:"telegram_id,omitempty"`
	IsDispatchAdmin bool   `mapstructure:"dispatch_admin" json:"is_dispatch_admin"`
}

// DisplayName は "姓 名" を優先し、なければユーザー名を返す
func (u User) DisplayName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return last + " " + first
	case first != "":
		return first
	case last != "":
		return last
	}
	return u.Username
}
