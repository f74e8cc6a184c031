package entity

import (
	"fmt"
	"strings"
	"time"
)

type IncidentStatus string

const (
	IncidentStatusOpened              IncidentStatus = "opened"
	IncidentStatusClosed              IncidentStatus = "closed"
	IncidentStatusForceClosed         IncidentStatus = "force_closed"
	IncidentStatusWaitingToBeAccepted IncidentStatus = "waiting_to_be_accepted"
)

var IncidentStatuses = []IncidentStatus{
	IncidentStatusOpened,
	IncidentStatusClosed,
	IncidentStatusForceClosed,
	IncidentStatusWaitingToBeAccepted,
}

func ParseIncidentStatus(s string) (IncidentStatus, error) {
	for _, st := range IncidentStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
}

func (s IncidentStatus) Label() string {
	switch s {
	case IncidentStatusOpened:
		return "Opened"
	case IncidentStatusClosed:
		return "Closed"
	case IncidentStatusForceClosed:
		return "Force closed"
	case IncidentStatusWaitingToBeAccepted:
		return "Waiting to be accepted"
	}
	return string(s)
}

type Incident struct {
	ID                int64          `json:"id" dynamo:"id,hash"`
	Name              string         `json:"name" dynamo:"name"`
	Description       string         `json:"description" dynamo:"description"`
	Status            IncidentStatus `json:"status" dynamo:"status"`
	Level             int            `json:"level" dynamo:"level"`
	IsCritical        bool           `json:"is_critical" dynamo:"is_critical"`
	AuthorID          int64          `json:"author_id" dynamo:"author_id"`
	ResponsibleUserID int64          `json:"responsible_user_id,omitempty" dynamo:"responsible_user_id"`
	PointID           int64          `json:"point_id" dynamo:"point_id"`
	CreatedAt         time.Time      `json:"created_at" dynamo:"created_at"`
}

func (i *Incident) DisplayStatus() string {
	return i.Status.Label()
}

func (i *Incident) HasResponsible() bool {
	return i.ResponsibleUserID != 0
}

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindPhoto MessageKind = "photo"
	MessageKindVideo MessageKind = "video"
	MessageKindAudio MessageKind = "audio"
)

// MessageContent はメッセージ種別ごとのペイロード
type MessageContent interface {
	Kind() MessageKind
	Validate() error
}

type TextContent struct {
	Text string `json:"text"`
}

type PhotoContent struct {
	URL string `json:"url"`
}

type VideoContent struct {
	URL string `json:"url"`
}

type AudioContent struct {
	URL string `json:"url"`
}

func (TextContent) Kind() MessageKind  { return MessageKindText }
func (PhotoContent) Kind() MessageKind { return MessageKindPhoto }
func (VideoContent) Kind() MessageKind { return MessageKindVideo }
func (AudioContent) Kind() MessageKind { return MessageKindAudio }

func (c TextContent) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return NewValidationError("text", "text is required")
	}
	return nil
}

func (c PhotoContent) Validate() error { return validateMediaURL(c.URL) }
func (c VideoContent) Validate() error { return validateMediaURL(c.URL) }
func (c AudioContent) Validate() error { return validateMediaURL(c.URL) }

func validateMediaURL(u string) error {
	if strings.TrimSpace(u) == "" {
		return NewValidationError("url", "url is required")
	}
	return nil
}

// NewMessageContent は message_type に応じたペイロードを組み立てる
func NewMessageContent(kind MessageKind, text, url string) (MessageContent, error) {
	var c MessageContent
	switch kind {
	case MessageKindText:
		c = TextContent{Text: text}
	case MessageKindPhoto:
		c = PhotoContent{URL: url}
	case MessageKindVideo:
		c = VideoContent{URL: url}
	case MessageKindAudio:
		c = AudioContent{URL: url}
	default:
		return nil, NewValidationError("message_type", fmt.Sprintf("unknown message type %q", kind))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

type IncidentMessage struct {
	ID         int64
	IncidentID int64
	UserID     int64
	CreatedAt  time.Time
	Content    MessageContent
}

func (m *IncidentMessage) Kind() MessageKind {
	if m.Content == nil {
		return ""
	}
	return m.Content.Kind()
}

func (m *IncidentMessage) IsSystem() bool {
	return m.UserID == 0
}

// Payload はテキストかメディアURLのどちらかを返す
func (m *IncidentMessage) Payload() (text, url string) {
	switch c := m.Content.(type) {
	case TextContent:
		return c.Text, ""
	case PhotoContent:
		return "", c.URL
	case VideoContent:
		return "", c.URL
	case AudioContent:
		return "", c.URL
	}
	return "", ""
}
