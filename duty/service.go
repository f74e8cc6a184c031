package duty

import (
	"context"
	"fmt"
	"time"

	"github.com/pyama86/dispatchd/calendar"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
)

const (
	startHour   = 17
	startMinute = 30
	endHour     = 8
	endMinute   = 30

	// MaxAssignedDays は AssignedDaysAhead の上限
	MaxAssignedDays = 100

	// CurrentDuties が遡って探す日数。範囲当番はこれより長くならない
	maxDutySpanDays = 62
)

// Service は当番表への読み書きをまとめる
type Service struct {
	repo repository.Repository
	cal  *calendar.Calendar
	now  func() time.Time
}

func NewService(repo repository.Repository, cal *calendar.Calendar) *Service {
	return &Service{repo: repo, cal: cal, now: time.Now}
}

// SetClock はテスト用に現在時刻を差し替える
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Now() time.Time {
	return s.now().In(s.cal.Location())
}

func (s *Service) Today() time.Time {
	return s.cal.Day(s.now())
}

func (s *Service) Calendar() *calendar.Calendar {
	return s.cal
}

func (s *Service) Repository() repository.Repository {
	return s.repo
}

func (s *Service) shiftStart(date time.Time) time.Time {
	d := s.cal.Day(date)
	return time.Date(d.Year(), d.Month(), d.Day(), startHour, startMinute, 0, 0, s.cal.Location())
}

func (s *Service) shiftEnd(date time.Time) time.Time {
	d := s.cal.Day(date).AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), endHour, endMinute, 0, 0, s.cal.Location())
}

func dateKey(t time.Time) string {
	return t.Format(entity.DateLayout)
}

// GetOrCreate は date の 17:30 から翌日 8:30 までの当番を取得、無ければ作る。既存の当番は変更しない
func (s *Service) GetOrCreate(ctx context.Context, date time.Time, roleID, userID int64) (*entity.Duty, bool, error) {
	return s.GetOrCreateRange(ctx, date, date, roleID, userID)
}

// GetOrCreateRange は start から end までを1件の当番で覆う
func (s *Service) GetOrCreateRange(ctx context.Context, start, end time.Time, roleID, userID int64) (*entity.Duty, bool, error) {
	d := &entity.Duty{
		RoleID: roleID,
		Date:   dateKey(s.cal.Day(start)),
		UserID: userID,
		Start:  s.shiftStart(start),
		End:    s.shiftEnd(end),
	}
	created, err := s.repo.CreateDutyIfAbsent(ctx, d)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create duty for role %d on %s: %w", roleID, d.Date, err)
	}
	return d, created, nil
}

// OverlapsRange は開始日が [start, end] に入る当番があるか
func (s *Service) OverlapsRange(ctx context.Context, roleID int64, start, end time.Time) (bool, error) {
	duties, err := s.repo.ListDuties(ctx, repository.DutyFilter{
		RoleID:   roleID,
		FromDate: dateKey(s.cal.Day(start)),
		ToDate:   dateKey(s.cal.Day(end)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping duties: %w", err)
	}
	return len(duties) > 0, nil
}

func (s *Service) DeleteRange(ctx context.Context, start, end time.Time, roleID int64) (int, error) {
	n, err := s.repo.DeleteDuties(ctx, roleID, dateKey(s.cal.Day(start)), dateKey(s.cal.Day(end)))
	if err != nil {
		return 0, fmt.Errorf("failed to delete duties: %w", err)
	}
	return n, nil
}

// DutiesOn は roleID が 0 なら全ロールの当番を返す
func (s *Service) DutiesOn(ctx context.Context, date time.Time, roleID int64) ([]entity.Duty, error) {
	key := dateKey(s.cal.Day(date))
	return s.repo.ListDuties(ctx, repository.DutyFilter{RoleID: roleID, FromDate: key, ToDate: key})
}

func (s *Service) List(ctx context.Context, f repository.DutyFilter) ([]entity.Duty, error) {
	return s.repo.ListDuties(ctx, f)
}

func (s *Service) Find(ctx context.Context, id int64) (*entity.Duty, error) {
	return s.repo.FindDuty(ctx, id)
}

// CurrentDuties は at+startOffset までに始まり、at 時点で終わっていない当番
func (s *Service) CurrentDuties(ctx context.Context, at time.Time, userID, roleID int64, startOffset time.Duration) ([]entity.Duty, error) {
	duties, err := s.repo.ListDuties(ctx, repository.DutyFilter{
		RoleID:      roleID,
		UserID:      userID,
		FromDate:    dateKey(s.cal.Day(at).AddDate(0, 0, -maxDutySpanDays)),
		StartBefore: at.Add(startOffset),
		EndAfter:    at,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list current duties: %w", err)
	}
	return duties, nil
}

// AssignedDaysAhead は from から連続して当番で覆われている日数
func (s *Service) AssignedDaysAhead(ctx context.Context, from time.Time, roleID int64) (int, error) {
	start := s.cal.Day(from)
	duties, err := s.repo.ListDuties(ctx, repository.DutyFilter{
		RoleID:   roleID,
		FromDate: dateKey(start.AddDate(0, 0, -maxDutySpanDays)),
		ToDate:   dateKey(start.AddDate(0, 0, MaxAssignedDays-1)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count assigned days: %w", err)
	}
	covered := map[string]bool{}
	for _, d := range duties {
		for _, day := range s.coveredDays(d) {
			covered[dateKey(day)] = true
		}
	}
	n := 0
	for d := start; n < MaxAssignedDays && covered[dateKey(d)]; d = d.AddDate(0, 0, 1) {
		n++
	}
	return n, nil
}

// coveredDays は当番が受け持つ日付。終了日の朝は含めない
func (s *Service) coveredDays(d entity.Duty) []time.Time {
	first := s.cal.Day(d.Start)
	last := s.cal.Day(d.End).AddDate(0, 0, -1)
	if last.Before(first) {
		last = first
	}
	var days []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

func (s *Service) roleName(ctx context.Context, roleID int64) string {
	role, err := s.repo.DutyRoleByID(ctx, roleID)
	if err != nil {
		return fmt.Sprintf("role #%d", roleID)
	}
	return role.Name
}

func (s *Service) userName(ctx context.Context, userID int64) string {
	u, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("user #%d", userID)
	}
	return u.DisplayName()
}
