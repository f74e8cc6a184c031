package duty

import (
	"context"
	"fmt"
	"time"

	"github.com/pyama86/dispatchd/domain/repository"
)

const paletteSize = 8

type CalendarDuty struct {
	DutyID   int64  `json:"duty_id"`
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	Color    int    `json:"color"`
	IsOpened bool   `json:"is_opened"`
}

type CalendarDay struct {
	Date      string         `json:"date"`
	InMonth   bool           `json:"in_month"`
	IsWorkday bool           `json:"is_workday"`
	Duties    []CalendarDuty `json:"duties"`
}

type Month struct {
	Year   int             `json:"year"`
	Month  time.Month      `json:"month"`
	RoleID int64           `json:"role_id"`
	Weeks  [][]CalendarDay `json:"weeks"`
}

// MonthCalendar は月曜始まりの週ごとに当番を並べる
func (s *Service) MonthCalendar(ctx context.Context, year int, month time.Month, roleID int64) (*Month, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	loc := s.cal.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	gridStart := first.AddDate(0, 0, -((int(first.Weekday()) + 6) % 7))
	gridEnd := last.AddDate(0, 0, (7-int(last.Weekday()))%7)

	duties, err := s.repo.ListDuties(ctx, repository.DutyFilter{
		RoleID:   roleID,
		FromDate: dateKey(gridStart.AddDate(0, 0, -maxDutySpanDays)),
		ToDate:   dateKey(gridEnd),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list duties for calendar: %w", err)
	}

	byDay := map[string][]CalendarDuty{}
	for _, d := range duties {
		entry := CalendarDuty{
			DutyID:   d.ID,
			UserID:   d.UserID,
			UserName: s.userName(ctx, d.UserID),
			Color:    int(d.UserID % paletteSize),
			IsOpened: d.IsOpened,
		}
		for _, day := range s.coveredDays(d) {
			byDay[dateKey(day)] = append(byDay[dateKey(day)], entry)
		}
	}

	m := &Month{Year: year, Month: month, RoleID: roleID}
	var week []CalendarDay
	for day := gridStart; !day.After(gridEnd); day = day.AddDate(0, 0, 1) {
		week = append(week, CalendarDay{
			Date:      dateKey(day),
			InMonth:   day.Month() == month,
			IsWorkday: s.cal.IsWorkday(day),
			Duties:    byDay[dateKey(day)],
		})
		if len(week) == 7 {
			m.Weeks = append(m.Weeks, week)
			week = nil
		}
	}
	return m, nil
}
