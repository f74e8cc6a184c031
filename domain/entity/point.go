package entity

import (
	"slices"
	"time"
)

type DutyRole struct {
	ID   int64  `mapstructure:"id" validate:"required" json:"id"`
	Name string `mapstructure:"name" validate:"required" json:"name"`
}

// ExploitationRole は duty point の level 0 (通報者) にあたる
type ExploitationRole struct {
	ID      int64   `mapstructure:"id" validate:"required" json:"id"`
	Name    string  `mapstructure:"name" validate:"required" json:"name"`
	Members []int64 `mapstructure:"members" json:"members"`
}

func (r ExploitationRole) HasMember(userID int64) bool {
	return slices.Contains(r.Members, userID)
}

const MaxEscalationLevel = 4

type DutyPoint struct {
	ID         int64   `mapstructure:"id" validate:"required" json:"id"`
	Name       string  `mapstructure:"name" validate:"required" json:"name"`
	Level0Role int64   `mapstructure:"level_0_role" json:"level_0_role,omitempty"`
	Level1Role int64   `mapstructure:"level_1_role" json:"level_1_role,omitempty"`
	Level2Role int64   `mapstructure:"level_2_role" json:"level_2_role,omitempty"`
	Level3Role int64   `mapstructure:"level_3_role" json:"level_3_role,omitempty"`
	Admins     []int64 `mapstructure:"admins" json:"admins"`
}

// LevelRole は level 1..3 に割り当てられた DutyRole を返す
func (p DutyPoint) LevelRole(level int) (int64, bool) {
	var id int64
	switch level {
	case 1:
		id = p.Level1Role
	case 2:
		id = p.Level2Role
	case 3:
		id = p.Level3Role
	}
	return id, id != 0
}

func (p DutyPoint) DutyRoles() []int64 {
	var ids []int64
	for level := 1; level < MaxEscalationLevel; level++ {
		if id, ok := p.LevelRole(level); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (p DutyPoint) UsesRole(roleID int64) bool {
	return slices.Contains(p.DutyRoles(), roleID)
}

func (p DutyPoint) IsAdmin(userID int64) bool {
	return slices.Contains(p.Admins, userID)
}

// WeekendDutyAssignment は休日の自動割り当て先。Weekday が空なら全ての休日に使う
type WeekendDutyAssignment struct {
	ID       int64  `mapstructure:"id" validate:"required" json:"id"`
	RoleID   int64  `mapstructure:"role_id" validate:"required" json:"role_id"`
	Weekday  string `mapstructure:"weekday" validate:"omitempty,oneof=saturday sunday" json:"weekday,omitempty"`
	UserID   int64  `mapstructure:"user_id" validate:"required" json:"user_id"`
	Disabled bool   `mapstructure:"disabled" json:"disabled"`
}

func (a WeekendDutyAssignment) Active() bool {
	return !a.Disabled
}

func (a WeekendDutyAssignment) MatchesWeekday(d time.Weekday) bool {
	switch a.Weekday {
	case "saturday":
		return d == time.Saturday
	case "sunday":
		return d == time.Sunday
	}
	return false
}
