package entity

import "time"

const DateLayout = "2006-01-02"

type DutyMarker string

const (
	MarkerComing     DutyMarker = "coming"
	MarkerReminder   DutyMarker = "reminder"
	MarkerNeedToOpen DutyMarker = "need_to_open"
)

var DutyMarkers = []DutyMarker{MarkerComing, MarkerReminder, MarkerNeedToOpen}

// Duty は (role_id, date) で一意になる当番枠
type Duty struct {
	RoleID         int64     `json:"role_id" dynamo:"role_id,hash"`
	Date           string    `json:"date" dynamo:"date,range"`
	ID             int64     `json:"id" dynamo:"id" index:"id-index,hash"`
	UserID         int64     `json:"user_id" dynamo:"user_id" index:"user_id-index,hash"`
	Start          time.Time `json:"start" dynamo:"start"`
	End            time.Time `json:"end" dynamo:"end"`
	IsOpened       bool      `json:"is_opened" dynamo:"is_opened"`
	IsForcedOpened bool      `json:"is_forced_opened" dynamo:"is_forced_opened"`

	ComingNotificationID     *int64     `json:"coming_notification_id,omitempty" dynamo:"coming_notification_id,omitempty"`
	ComingNotifiedAt         *time.Time `json:"coming_notified_at,omitempty" dynamo:"coming_notified_at,omitempty"`
	ReminderNotificationID   *int64     `json:"reminder_notification_id,omitempty" dynamo:"reminder_notification_id,omitempty"`
	RemindedAt               *time.Time `json:"reminded_at,omitempty" dynamo:"reminded_at,omitempty"`
	NeedToOpenNotificationID *int64     `json:"need_to_open_notification_id,omitempty" dynamo:"need_to_open_notification_id,omitempty"`
	NeedToOpenAt             *time.Time `json:"need_to_open_at,omitempty" dynamo:"need_to_open_at,omitempty"`
}

func (d *Duty) MarkerSet(m DutyMarker) bool {
	id, _ := d.Marker(m)
	return id != nil
}

func (d *Duty) Marker(m DutyMarker) (*int64, *time.Time) {
	switch m {
	case MarkerComing:
		return d.ComingNotificationID, d.ComingNotifiedAt
	case MarkerReminder:
		return d.ReminderNotificationID, d.RemindedAt
	case MarkerNeedToOpen:
		return d.NeedToOpenNotificationID, d.NeedToOpenAt
	}
	return nil, nil
}

func (d *Duty) SetMarker(m DutyMarker, notificationID int64, at time.Time) {
	id := notificationID
	ts := at
	switch m {
	case MarkerComing:
		d.ComingNotificationID, d.ComingNotifiedAt = &id, &ts
	case MarkerReminder:
		d.ReminderNotificationID, d.RemindedAt = &id, &ts
	case MarkerNeedToOpen:
		d.NeedToOpenNotificationID, d.NeedToOpenAt = &id, &ts
	}
}

// Reassign は担当者を差し替え、通知シーケンスを最初からやり直させる
func (d *Duty) Reassign(userID int64) {
	d.UserID = userID
	d.IsOpened = false
	d.IsForcedOpened = false
	d.ComingNotificationID, d.ComingNotifiedAt = nil, nil
	d.ReminderNotificationID, d.RemindedAt = nil, nil
	d.NeedToOpenNotificationID, d.NeedToOpenAt = nil, nil
}

// ActiveAt は at+offset までに始まり、at 時点でまだ終わっていないかを返す
func (d *Duty) ActiveAt(at time.Time, startOffset time.Duration) bool {
	return !d.Start.After(at.Add(startOffset)) && at.Before(d.End)
}

type DutyActionType string

const (
	DutyActionRefusal    DutyActionType = "refusal"
	DutyActionTransfer   DutyActionType = "transfer"
	DutyActionAcceptance DutyActionType = "acceptance"
)

const DefaultActionReason = "not specified"

type DutyAction struct {
	ID         int64          `json:"id" dynamo:"id,hash"`
	DutyID     int64          `json:"duty_id" dynamo:"duty_id" index:"duty_id-index,hash"`
	UserID     int64          `json:"user_id" dynamo:"user_id"`
	ActionType DutyActionType `json:"action_type" dynamo:"action_type"`
	Reason     string         `json:"reason" dynamo:"reason"`
	NewUserID  int64          `json:"new_user_id,omitempty" dynamo:"new_user_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at" dynamo:"created_at"`
	IsResolved bool           `json:"is_resolved" dynamo:"is_resolved"`
	ResolvedBy int64          `json:"resolved_by,omitempty" dynamo:"resolved_by,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty" dynamo:"resolved_at,omitempty"`
}

func (a *DutyAction) Resolve(by int64, at time.Time) {
	ts := at
	a.IsResolved = true
	a.ResolvedBy = by
	a.ResolvedAt = &ts
}
