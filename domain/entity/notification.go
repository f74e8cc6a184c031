package entity

import "time"

type NotificationSource string

const (
	NotificationSourceDispatch NotificationSource = "dispatch"
	NotificationSourceSystem   NotificationSource = "system"
)

type Notification struct {
	ID           int64              `json:"id" dynamo:"id,hash"`
	UserID       int64              `json:"user_id" dynamo:"user_id" index:"user_id-index,hash"`
	Title        string             `json:"title" dynamo:"title"`
	Text         string             `json:"text" dynamo:"text"`
	Source       NotificationSource `json:"source" dynamo:"source"`
	IsSeen       bool               `json:"is_seen" dynamo:"is_seen"`
	CreatedAt    time.Time          `json:"created_at" dynamo:"created_at"`
	DutyActionID int64              `json:"duty_action_id,omitempty" dynamo:"duty_action_id,omitempty"`
}
