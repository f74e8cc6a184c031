package model

import (
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
)

// IncidentMessage は種別ごとのペイロードを1行に平坦化した永続化用レコード
type IncidentMessage struct {
	IncidentID int64     `json:"incident_id" dynamo:"incident_id,hash"`
	ID         int64     `json:"id" dynamo:"id,range"`
	UserID     int64     `json:"user_id" dynamo:"user_id"`
	Kind       string    `json:"message_type" dynamo:"message_type"`
	Text       string    `json:"text,omitempty" dynamo:"text,omitempty"`
	URL        string    `json:"url,omitempty" dynamo:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at" dynamo:"created_at"`
}

func NewIncidentMessage(m *entity.IncidentMessage) IncidentMessage {
	text, url := m.Payload()
	return IncidentMessage{
		IncidentID: m.IncidentID,
		ID:         m.ID,
		UserID:     m.UserID,
		Kind:       string(m.Kind()),
		Text:       text,
		URL:        url,
		CreatedAt:  m.CreatedAt,
	}
}

func (r IncidentMessage) Entity() (entity.IncidentMessage, error) {
	content, err := entity.NewMessageContent(entity.MessageKind(r.Kind), r.Text, r.URL)
	if err != nil {
		return entity.IncidentMessage{}, err
	}
	return entity.IncidentMessage{
		ID:         r.ID,
		IncidentID: r.IncidentID,
		UserID:     r.UserID,
		CreatedAt:  r.CreatedAt,
		Content:    content,
	}, nil
}
