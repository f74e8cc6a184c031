package duty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/pyama86/dispatchd/presentation/messages"
)

type AssignRequest struct {
	RoleID    int64
	UserID    int64
	StartDate time.Time
	// EndDate がゼロ値なら StartDate と同じ
	EndDate  time.Time
	DutyStep int
	RestStep int
}

type AssignResult struct {
	Created     []entity.Duty
	Overwritten []entity.Duty
}

func (r *AssignResult) Duties() []entity.Duty {
	return append(append([]entity.Duty{}, r.Created...), r.Overwritten...)
}

// Scheduler はオペレーターによる一括割り当て。既存の当番は上書きする
type Scheduler struct {
	svc       *Service
	publisher notifier.Publisher
}

func NewScheduler(svc *Service, publisher notifier.Publisher) *Scheduler {
	return &Scheduler{svc: svc, publisher: publisher}
}

func (s *Scheduler) validate(ctx context.Context, req *AssignRequest) error {
	verr := &entity.ValidationError{}
	if req.DutyStep == 0 {
		req.DutyStep = 1
	}
	if req.EndDate.IsZero() {
		req.EndDate = req.StartDate
	}
	if req.StartDate.IsZero() {
		verr.Add("start_date", "start_date is required")
	}
	if req.DutyStep < 1 {
		verr.Add("duty_step", "duty_step must be at least 1")
	}
	if req.RestStep < 0 {
		verr.Add("rest_step", "rest_step must not be negative")
	}
	if !req.StartDate.IsZero() && s.svc.cal.Day(req.EndDate).Before(s.svc.cal.Day(req.StartDate)) {
		verr.Add("end_date", "end_date must not be before start_date")
	}
	if _, err := s.svc.repo.UserByID(ctx, req.UserID); err != nil {
		verr.Add("user_id", "user does not exist")
	}
	if _, err := s.svc.repo.DutyRoleByID(ctx, req.RoleID); err != nil {
		verr.Add("role_id", "duty role does not exist")
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}

// Assign は duty_step 日当番、rest_step 日休みを end まで繰り返す
func (s *Scheduler) Assign(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	if err := s.validate(ctx, &req); err != nil {
		return nil, err
	}
	start := s.svc.cal.Day(req.StartDate)
	end := s.svc.cal.Day(req.EndDate)

	res := &AssignResult{}
	current := start
	for !current.After(end) {
		for i := 0; i < req.DutyStep && !current.After(end); i++ {
			d, created, err := s.place(ctx, current, req.RoleID, req.UserID)
			if err != nil {
				return res, err
			}
			if created {
				res.Created = append(res.Created, *d)
			} else {
				res.Overwritten = append(res.Overwritten, *d)
			}
			current = current.AddDate(0, 0, 1)
		}
		current = current.AddDate(0, 0, req.RestStep)
	}

	if n := len(res.Created) + len(res.Overwritten); n > 0 && s.publisher != nil {
		title, text := messages.DutyScheduled(s.svc.roleName(ctx, req.RoleID), dateKey(start), dateKey(end))
		s.publisher.Dispatch(ctx, notifier.NewEvent(title, text, req.UserID))
	}
	return res, nil
}

const placeRetries = 3

// place は上書き中に枠が消された場合、枠を作り直す
func (s *Scheduler) place(ctx context.Context, day time.Time, roleID, userID int64) (*entity.Duty, bool, error) {
	for attempt := 1; ; attempt++ {
		d, created, err := s.svc.GetOrCreate(ctx, day, roleID, userID)
		if err != nil || created {
			return d, created, err
		}
		if d.UserID != userID {
			d.Reassign(userID)
		}
		err = s.svc.repo.SaveDuty(ctx, d)
		if err == nil {
			return d, false, nil
		}
		gone := errors.Is(err, entity.ErrConflict) || errors.Is(err, entity.ErrNotFound)
		if !gone || attempt >= placeRetries {
			return nil, false, fmt.Errorf("failed to overwrite duty %d: %w", d.ID, err)
		}
	}
}

// Clear は [start, end] の当番を削除する
func (s *Scheduler) Clear(ctx context.Context, roleID int64, start, end time.Time) (int, error) {
	if end.IsZero() {
		end = start
	}
	if s.svc.cal.Day(end).Before(s.svc.cal.Day(start)) {
		return 0, entity.NewValidationError("end_date", "end_date must not be before start_date")
	}
	if _, err := s.svc.repo.DutyRoleByID(ctx, roleID); err != nil {
		return 0, entity.NewValidationError("role_id", "duty role does not exist")
	}
	return s.svc.DeleteRange(ctx, start, end, roleID)
}
