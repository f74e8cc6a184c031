package incident

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/pyama86/dispatchd/presentation/messages"
)

// エスカレーション時に当番の開始前でも対象とみなす時間
const escalationStartOffset = 15 * time.Minute

const ActionEscalate = "escalate"

type CreateRequest struct {
	Name        string
	Description string
	PointID     int64
}

// Engine はインシデントの状態遷移とエスカレーションを扱う
type Engine struct {
	repo      repository.Repository
	duties    *duty.Service
	publisher notifier.Publisher
}

func NewEngine(duties *duty.Service, publisher notifier.Publisher) *Engine {
	return &Engine{
		repo:      duties.Repository(),
		duties:    duties,
		publisher: publisher,
	}
}

func (e *Engine) Find(ctx context.Context, id int64) (*entity.Incident, error) {
	return e.repo.FindIncident(ctx, id)
}

func (e *Engine) List(ctx context.Context, f repository.IncidentFilter) ([]entity.Incident, error) {
	return e.repo.ListIncidents(ctx, f)
}

// Create は level 0 で登録し、そのまま最初のエスカレーションを行う
func (e *Engine) Create(ctx context.Context, authorID int64, req CreateRequest) (*entity.Incident, error) {
	verr := &entity.ValidationError{}
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "name is required")
	}
	if _, err := e.repo.DutyPointByID(ctx, req.PointID); err != nil {
		verr.Add("point_id", "duty point does not exist")
	}
	if !verr.Empty() {
		return nil, verr
	}

	inc := &entity.Incident{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      entity.IncidentStatusOpened,
		AuthorID:    authorID,
		PointID:     req.PointID,
		CreatedAt:   e.duties.Now(),
	}
	if err := e.repo.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}
	events, err := e.escalate(ctx, inc, authorID)
	if err != nil {
		return inc, err
	}
	e.publisher.Dispatch(ctx, events...)
	return inc, nil
}

// Escalate は担当者か管理者だけが呼べる。level 4 からはこれ以上上がらない
func (e *Engine) Escalate(ctx context.Context, incidentID, actorID int64) (*entity.Incident, error) {
	inc, err := e.repo.FindIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	point, err := e.repo.DutyPointByID(ctx, inc.PointID)
	if err != nil {
		return nil, err
	}
	if inc.ResponsibleUserID != actorID && !repository.IsAdminOf(ctx, e.repo, actorID, point) {
		return nil, entity.Forbidden("you are not responsible for this incident")
	}
	if inc.Level >= entity.MaxEscalationLevel {
		return nil, entity.NewValidationError("level", "the incident is already at the highest level")
	}
	events, err := e.escalate(ctx, inc, actorID)
	if err != nil {
		return nil, err
	}
	e.publisher.Dispatch(ctx, events...)
	return inc, nil
}

// escalate は次のレベルから順に、開いている当番がいるレベルを探す。
// 結果に関係なくインシデントは保存する
func (e *Engine) escalate(ctx context.Context, inc *entity.Incident, actorID int64) ([]notifier.Event, error) {
	point, err := e.repo.DutyPointByID(ctx, inc.PointID)
	if err != nil {
		return nil, err
	}
	now := e.duties.Now()

	var events []notifier.Event
	for level := min(inc.Level+1, entity.MaxEscalationLevel); level <= entity.MaxEscalationLevel; level++ {
		if level == entity.MaxEscalationLevel {
			if err := e.systemMessage(ctx, inc, messages.EscalationCritical(e.userName(ctx, actorID))); err != nil {
				return nil, err
			}
			inc.Level = level
			inc.IsCritical = true
			inc.ResponsibleUserID = 0
			events = append(events, notifier.NewEvent(inc.Name, messages.IncidentCritical(point.Name), repository.PointAdminIDs(ctx, e.repo, *point)...))
			break
		}

		roleID, ok := point.LevelRole(level)
		if !ok {
			continue
		}
		current, err := e.duties.CurrentDuties(ctx, now, 0, roleID, escalationStartOffset)
		if err != nil {
			return nil, err
		}
		if len(current) == 0 {
			continue
		}
		d := current[0]
		if !d.IsOpened {
			role := e.roleName(ctx, roleID)
			if err := e.systemMessage(ctx, inc, messages.EscalationDutyNotOpened(level, e.userName(ctx, d.UserID), role)); err != nil {
				return nil, err
			}
			continue
		}

		inc.Level = level
		inc.ResponsibleUserID = d.UserID
		inc.Status = entity.IncidentStatusWaitingToBeAccepted
		events = append(events,
			notifier.NewEvent(inc.Name, messages.IncidentAssigned(point.Name), d.UserID),
			notifier.NewEvent(inc.Name, messages.IncidentEscalated(level), repository.PointAdminIDs(ctx, e.repo, *point)...),
		)
		if err := e.systemMessage(ctx, inc, messages.EscalationPending(level, e.userName(ctx, d.UserID))); err != nil {
			return nil, err
		}
		break
	}

	if err := e.repo.SaveIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to save incident %d: %w", inc.ID, err)
	}
	return events, nil
}

// ChangeStatus は担当者か管理者による状態変更。受諾は担当者本人しかできない
func (e *Engine) ChangeStatus(ctx context.Context, incidentID, actorID int64, status string) (*entity.Incident, error) {
	inc, err := e.repo.FindIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	point, err := e.repo.DutyPointByID(ctx, inc.PointID)
	if err != nil {
		return nil, err
	}
	isAdmin := repository.IsAdminOf(ctx, e.repo, actorID, point)
	if inc.ResponsibleUserID != actorID && !isAdmin {
		return nil, entity.Forbidden("you are not responsible for this incident")
	}
	next, err := entity.ParseIncidentStatus(status)
	if err != nil {
		return nil, err
	}
	if next == entity.IncidentStatusForceClosed && !isAdmin {
		return nil, entity.Forbidden("only an admin can force close the incident")
	}
	if next == inc.Status {
		return inc, nil
	}

	actor := e.userName(ctx, actorID)
	var text string
	switch next {
	case entity.IncidentStatusClosed:
		text = messages.IncidentClosed(actor)
	case entity.IncidentStatusForceClosed:
		text = messages.IncidentForceClosed(actor)
	case entity.IncidentStatusOpened:
		switch inc.Status {
		case entity.IncidentStatusClosed, entity.IncidentStatusForceClosed:
			text = messages.IncidentReopened(actor)
		case entity.IncidentStatusWaitingToBeAccepted:
			if inc.ResponsibleUserID != actorID {
				return nil, entity.Forbidden("only the responsible user can accept the incident")
			}
			text = messages.IncidentAccepted(actor)
		}
	}

	inc.Status = next
	if err := e.repo.SaveIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to save incident %d: %w", inc.ID, err)
	}
	if text != "" {
		if err := e.systemMessage(ctx, inc, text); err != nil {
			return nil, err
		}
	}
	return inc, nil
}

func (e *Engine) AvailableActions(ctx context.Context, incidentID, actorID int64) ([]string, error) {
	inc, err := e.repo.FindIncident(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	point, err := e.repo.DutyPointByID(ctx, inc.PointID)
	if err != nil {
		return nil, err
	}
	return availableActions(inc, actorID, repository.IsAdminOf(ctx, e.repo, actorID, point)), nil
}

func availableActions(inc *entity.Incident, actorID int64, isAdmin bool) []string {
	actions := []string{}
	responsible := inc.ResponsibleUserID == actorID && inc.Status != entity.IncidentStatusWaitingToBeAccepted
	if !responsible && !isAdmin {
		return actions
	}
	if inc.Status != entity.IncidentStatusOpened {
		actions = append(actions, string(entity.IncidentStatusOpened))
	}
	if inc.Status != entity.IncidentStatusClosed {
		actions = append(actions, string(entity.IncidentStatusClosed))
	}
	if inc.Level < entity.MaxEscalationLevel {
		actions = append(actions, ActionEscalate)
	}
	if isAdmin && inc.Status != entity.IncidentStatusForceClosed {
		actions = append(actions, string(entity.IncidentStatusForceClosed))
	}
	return actions
}

func (e *Engine) systemMessage(ctx context.Context, inc *entity.Incident, text string) error {
	m := &entity.IncidentMessage{
		IncidentID: inc.ID,
		CreatedAt:  e.duties.Now(),
		Content:    entity.TextContent{Text: text},
	}
	if err := e.repo.AddIncidentMessage(ctx, m); err != nil {
		return fmt.Errorf("failed to add system message to incident %d: %w", inc.ID, err)
	}
	return nil
}

func (e *Engine) userName(ctx context.Context, id int64) string {
	u, err := e.repo.UserByID(ctx, id)
	if err != nil {
		return fmt.Sprintf("user #%d", id)
	}
	return u.DisplayName()
}

func (e *Engine) roleName(ctx context.Context, id int64) string {
	r, err := e.repo.DutyRoleByID(ctx, id)
	if err != nil {
		return fmt.Sprintf("role #%d", id)
	}
	return r.Name
}
