package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/model"
)

type dutyKey struct {
	roleID int64
	date   string
}

// MemoryRepository はプロセス内で完結する Store。テストと単体起動で使う
type MemoryRepository struct {
	mu            sync.Mutex
	seq           map[string]int64
	duties        map[int64]*entity.Duty
	dutySlots     map[dutyKey]int64
	actions       map[int64]*entity.DutyAction
	incidents     map[int64]*entity.Incident
	messages      map[int64][]model.IncidentMessage
	notifications map[int64]*entity.Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		seq:           map[string]int64{},
		duties:        map[int64]*entity.Duty{},
		dutySlots:     map[dutyKey]int64{},
		actions:       map[int64]*entity.DutyAction{},
		incidents:     map[int64]*entity.Incident{},
		messages:      map[int64][]model.IncidentMessage{},
		notifications: map[int64]*entity.Notification{},
	}
}

func (r *MemoryRepository) next(name string) int64 {
	r.seq[name]++
	return r.seq[name]
}

func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) CreateDutyIfAbsent(_ context.Context, d *entity.Duty) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dutyKey{d.RoleID, d.Date}
	if id, ok := r.dutySlots[key]; ok {
		*d = *r.duties[id]
		return false, nil
	}
	d.ID = r.next(model.SequenceDuty)
	stored := *d
	r.duties[d.ID] = &stored
	r.dutySlots[key] = d.ID
	return true, nil
}

func (r *MemoryRepository) SaveDuty(_ context.Context, d *entity.Duty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.duties[d.ID]
	if !ok {
		return entity.NotFound("duty", d.ID)
	}
	if cur.RoleID != d.RoleID || cur.Date != d.Date {
		key := dutyKey{d.RoleID, d.Date}
		if _, taken := r.dutySlots[key]; taken {
			return entity.ErrConflict
		}
		delete(r.dutySlots, dutyKey{cur.RoleID, cur.Date})
		r.dutySlots[key] = d.ID
	}
	stored := *d
	r.duties[d.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindDuty(_ context.Context, id int64) (*entity.Duty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.duties[id]
	if !ok {
		return nil, entity.NotFound("duty", id)
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) ListDuties(_ context.Context, f DutyFilter) ([]entity.Duty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var duties []entity.Duty
	for _, d := range r.duties {
		if matchDuty(d, f) {
			duties = append(duties, *d)
		}
	}
	sortDuties(duties)
	return duties, nil
}

func matchDuty(d *entity.Duty, f DutyFilter) bool {
	if f.RoleID != 0 && d.RoleID != f.RoleID {
		return false
	}
	if f.UserID != 0 && d.UserID != f.UserID {
		return false
	}
	if f.FromDate != "" && d.Date < f.FromDate {
		return false
	}
	if f.ToDate != "" && d.Date > f.ToDate {
		return false
	}
	if !f.StartBefore.IsZero() && d.Start.After(f.StartBefore) {
		return false
	}
	if !f.EndAfter.IsZero() && !d.End.After(f.EndAfter) {
		return false
	}
	if f.IsOpened != nil && d.IsOpened != *f.IsOpened {
		return false
	}
	return true
}

func sortDuties(duties []entity.Duty) {
	sort.Slice(duties, func(i, j int) bool {
		if duties[i].Date != duties[j].Date {
			return duties[i].Date < duties[j].Date
		}
		return duties[i].RoleID < duties[j].RoleID
	})
}

func (r *MemoryRepository) DeleteDuties(_ context.Context, roleID int64, fromDate, toDate string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, d := range r.duties {
		if d.RoleID == roleID && d.Date >= fromDate && d.Date <= toDate {
			delete(r.duties, id)
			delete(r.dutySlots, dutyKey{d.RoleID, d.Date})
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) LatchDutyMarker(_ context.Context, dutyID int64, marker entity.DutyMarker, notificationID int64, at time.Time, forceOpen bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.duties[dutyID]
	if !ok {
		return false, entity.NotFound("duty", dutyID)
	}
	if d.IsOpened || d.MarkerSet(marker) {
		return false, nil
	}
	d.SetMarker(marker, notificationID, at)
	if forceOpen {
		d.IsOpened = true
		d.IsForcedOpened = true
	}
	return true, nil
}

func (r *MemoryRepository) OpenDuty(_ context.Context, dutyID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.duties[dutyID]
	if !ok {
		return false, entity.NotFound("duty", dutyID)
	}
	if d.IsOpened {
		return false, nil
	}
	d.IsOpened = true
	return true, nil
}

func (r *MemoryRepository) CreateDutyAction(_ context.Context, a *entity.DutyAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.next(model.SequenceDutyAction)
	stored := *a
	r.actions[a.ID] = &stored
	return nil
}

func (r *MemoryRepository) SaveDutyAction(_ context.Context, a *entity.DutyAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[a.ID]; !ok {
		return entity.NotFound("duty action", a.ID)
	}
	stored := *a
	r.actions[a.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindDutyAction(_ context.Context, id int64) (*entity.DutyAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actions[id]
	if !ok {
		return nil, entity.NotFound("duty action", id)
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListDutyActions(_ context.Context, dutyID int64, unresolvedOnly bool) ([]entity.DutyAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var actions []entity.DutyAction
	for _, a := range r.actions {
		if a.DutyID != dutyID || (unresolvedOnly && a.IsResolved) {
			continue
		}
		actions = append(actions, *a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}

func (r *MemoryRepository) CreateIncident(_ context.Context, i *entity.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i.ID = r.next(model.SequenceIncident)
	stored := *i
	r.incidents[i.ID] = &stored
	return nil
}

func (r *MemoryRepository) SaveIncident(_ context.Context, i *entity.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.incidents[i.ID]; !ok {
		return entity.NotFound("incident", i.ID)
	}
	stored := *i
	r.incidents[i.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindIncident(_ context.Context, id int64) (*entity.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.incidents[id]
	if !ok {
		return nil, entity.NotFound("incident", id)
	}
	cp := *i
	return &cp, nil
}

func (r *MemoryRepository) ListIncidents(_ context.Context, f IncidentFilter) ([]entity.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var incidents []entity.Incident
	for _, i := range r.incidents {
		if matchIncident(i, f) {
			incidents = append(incidents, *i)
		}
	}
	sortIncidents(incidents)
	return incidents, nil
}

func matchIncident(i *entity.Incident, f IncidentFilter) bool {
	if !f.From.IsZero() && i.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !i.CreatedAt.Before(f.To) {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	if f.ResponsibleUserID != 0 && i.ResponsibleUserID != f.ResponsibleUserID {
		return false
	}
	if f.PointID != 0 && i.PointID != f.PointID {
		return false
	}
	if f.AuthorID != 0 && i.AuthorID != f.AuthorID {
		return false
	}
	return true
}

// 新しい順
func sortIncidents(incidents []entity.Incident) {
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].ID > incidents[j].ID })
}

func (r *MemoryRepository) AddIncidentMessage(_ context.Context, m *entity.IncidentMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.incidents[m.IncidentID]; !ok {
		return entity.NotFound("incident", m.IncidentID)
	}
	m.ID = r.next(model.SequenceMessage)
	r.messages[m.IncidentID] = append(r.messages[m.IncidentID], model.NewIncidentMessage(m))
	return nil
}

func (r *MemoryRepository) ListIncidentMessages(_ context.Context, incidentID int64) ([]entity.IncidentMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.messages[incidentID]
	messages := make([]entity.IncidentMessage, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		m, err := records[i].Entity()
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *MemoryRepository) ReserveNotificationID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next(model.SequenceNotification), nil
}

func (r *MemoryRepository) CreateNotification(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == 0 {
		n.ID = r.next(model.SequenceNotification)
	} else if _, ok := r.notifications[n.ID]; ok {
		return entity.ErrConflict
	}
	stored := *n
	r.notifications[n.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindNotification(_ context.Context, id int64) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, entity.NotFound("notification", id)
	}
	cp := *n
	return &cp, nil
}

func (r *MemoryRepository) ListNotifications(_ context.Context, userID int64) ([]entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notifications []entity.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			notifications = append(notifications, *n)
		}
	}
	sortNotifications(notifications)
	return notifications, nil
}

func sortNotifications(notifications []entity.Notification) {
	sort.Slice(notifications, func(i, j int) bool { return notifications[i].ID > notifications[j].ID })
}

func (r *MemoryRepository) MarkNotificationSeen(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return entity.NotFound("notification", id)
	}
	n.IsSeen = true
	return nil
}
