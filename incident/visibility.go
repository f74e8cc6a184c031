package incident

import (
	"context"
	"slices"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
)

// VisibleTo はディスパッチ管理者なら全件、それ以外は作成者・担当者・ポイント管理者として関わるものを返す
func (e *Engine) VisibleTo(ctx context.Context, userID int64) ([]entity.Incident, error) {
	all, err := e.repo.ListIncidents(ctx, repository.IncidentFilter{})
	if err != nil {
		return nil, err
	}
	if u, err := e.repo.UserByID(ctx, userID); err == nil && u.IsDispatchAdmin {
		return all, nil
	}
	var administered []int64
	for _, p := range e.repo.DutyPoints(ctx) {
		if p.IsAdmin(userID) {
			administered = append(administered, p.ID)
		}
	}
	visible := []entity.Incident{}
	for _, inc := range all {
		if inc.AuthorID == userID || inc.ResponsibleUserID == userID || slices.Contains(administered, inc.PointID) {
			visible = append(visible, inc)
		}
	}
	return visible, nil
}

// RelatedPoints は通報者ロールのメンバーか、いずれかのレベルの当番中であるポイント
func (e *Engine) RelatedPoints(ctx context.Context, userID int64) ([]entity.DutyPoint, error) {
	current, err := e.duties.CurrentDuties(ctx, e.duties.Now(), userID, 0, escalationStartOffset)
	if err != nil {
		return nil, err
	}
	var activeRoles []int64
	for _, d := range current {
		activeRoles = append(activeRoles, d.RoleID)
	}
	var member []int64
	for _, r := range e.repo.ExploitationRoles(ctx) {
		if r.HasMember(userID) {
			member = append(member, r.ID)
		}
	}

	points := []entity.DutyPoint{}
	for _, p := range e.repo.DutyPoints(ctx) {
		related := p.Level0Role != 0 && slices.Contains(member, p.Level0Role)
		for _, roleID := range p.DutyRoles() {
			if slices.Contains(activeRoles, roleID) {
				related = true
			}
		}
		if related {
			points = append(points, p)
		}
	}
	return points, nil
}

// HasAccess はディスパッチ機能を使えるユーザーか。当番の経験、ポイント管理、通報者ロールのいずれかが必要
func (e *Engine) HasAccess(ctx context.Context, userID int64) (bool, error) {
	u, err := e.repo.UserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.IsDispatchAdmin {
		return true, nil
	}
	for _, p := range e.repo.DutyPoints(ctx) {
		if p.IsAdmin(userID) {
			return true, nil
		}
	}
	for _, r := range e.repo.ExploitationRoles(ctx) {
		if r.HasMember(userID) {
			return true, nil
		}
	}
	duties, err := e.duties.List(ctx, repository.DutyFilter{UserID: userID})
	if err != nil {
		return false, err
	}
	return len(duties) > 0, nil
}
