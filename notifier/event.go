package notifier

import "github.com/pyama86/dispatchd/domain/entity"

// Event は状態遷移が返す通知コマンド。永続化と配送は Dispatcher が行う
type Event struct {
	UserIDs      []int64
	Title        string
	Text         string
	Source       entity.NotificationSource
	DutyActionID int64
	// ReservedID は先頭の宛先の通知IDとして使う
	ReservedID int64
}

func NewEvent(title, text string, userIDs ...int64) Event {
	return Event{
		UserIDs: userIDs,
		Title:   title,
		Text:    text,
		Source:  entity.NotificationSourceDispatch,
	}
}

func (e Event) WithDutyAction(id int64) Event {
	e.DutyActionID = id
	return e
}

func (e Event) recipients() []int64 {
	seen := map[int64]bool{}
	var ids []int64
	for _, id := range e.UserIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
