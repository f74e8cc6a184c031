package jobs

import (
	"context"
	"time"

	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/duty"
)

const (
	NeedToOpenNotification = "need_to_open_notification"
	CheckMissingDuties     = "check_missing_duties"
	EnsureWeekendDuties    = "ensure_weekend_duties"
)

// NewDispatchRunner は当番の監視と休日当番の補充を登録した Runner を返す
func NewDispatchRunner(loc *time.Location, cfg repository.JobsConfig, monitor *duty.Monitor, coverage *duty.Coverage) (*Runner, error) {
	r := NewRunner(loc)
	if err := r.Register(NeedToOpenNotification, cfg.NeedToOpenNotification, monitor.Tick); err != nil {
		return nil, err
	}
	if err := r.Register(CheckMissingDuties, cfg.CheckMissingDuties, func(ctx context.Context) error {
		_, err := coverage.CheckMissing(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if err := r.Register(EnsureWeekendDuties, cfg.EnsureWeekendDuties, func(ctx context.Context) error {
		_, err := coverage.Ensure(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	return r, nil
}
