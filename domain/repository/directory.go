package repository

import (
	"context"
	"slices"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
)

// DutyPointsByRole は level 1..3 のいずれかで roleID を使うポイントを返す
func DutyPointsByRole(ctx context.Context, dir DirectoryRepository, roleID int64) []entity.DutyPoint {
	var points []entity.DutyPoint
	for _, p := range dir.DutyPoints(ctx) {
		if p.UsesRole(roleID) {
			points = append(points, p)
		}
	}
	return points
}

// UsedDutyRoles はいずれかのポイントで使われているロールIDを昇順で返す
func UsedDutyRoles(ctx context.Context, dir DirectoryRepository) []int64 {
	var ids []int64
	for _, p := range dir.DutyPoints(ctx) {
		for _, id := range p.DutyRoles() {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

// PointAdminIDs はポイント管理者とディスパッチ管理者の和集合
func PointAdminIDs(ctx context.Context, dir DirectoryRepository, points ...entity.DutyPoint) []int64 {
	var ids []int64
	add := func(id int64) {
		if id != 0 && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, p := range points {
		for _, id := range p.Admins {
			add(id)
		}
	}
	for _, u := range dir.DispatchAdmins(ctx) {
		add(u.ID)
	}
	return ids
}

func DispatchAdminIDs(ctx context.Context, dir DirectoryRepository) []int64 {
	var ids []int64
	for _, u := range dir.DispatchAdmins(ctx) {
		ids = append(ids, u.ID)
	}
	return ids
}

// IsAdminOf はディスパッチ管理者かポイント管理者かを判定する
func IsAdminOf(ctx context.Context, dir DirectoryRepository, userID int64, point *entity.DutyPoint) bool {
	if u, err := dir.UserByID(ctx, userID); err == nil && u.IsDispatchAdmin {
		return true
	}
	return point != nil && point.IsAdmin(userID)
}

// ActiveWeekendAssignment は有効な割り当てのうちIDが最小のものを返す。
// weekday が nil なら曜日指定なしの割り当ても含めて探す
func ActiveWeekendAssignment(ctx context.Context, dir DirectoryRepository, roleID int64, weekday *time.Weekday) *entity.WeekendDutyAssignment {
	var found *entity.WeekendDutyAssignment
	for _, a := range dir.WeekendAssignments(ctx) {
		if a.RoleID != roleID || !a.Active() {
			continue
		}
		if weekday != nil && !a.MatchesWeekday(*weekday) {
			continue
		}
		if found == nil || a.ID < found.ID {
			a := a
			found = &a
		}
	}
	return found
}
