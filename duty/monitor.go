package duty

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/pyama86/dispatchd/presentation/messages"
)

// MonitorOptions は 予告 → リマインド → 強制オープン の間隔
type MonitorOptions struct {
	StartOffset time.Duration
	StepDelay   time.Duration
}

// Monitor は当番の開始通知と強制オープンを1分ごとに進める
type Monitor struct {
	svc       *Service
	publisher notifier.Publisher
	opts      MonitorOptions
}

func NewMonitor(svc *Service, publisher notifier.Publisher, opts MonitorOptions) *Monitor {
	if opts.StartOffset <= 0 {
		opts.StartOffset = 30 * time.Minute
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = 15 * time.Minute
	}
	return &Monitor{svc: svc, publisher: publisher, opts: opts}
}

// Tick は1件の失敗で止まらず、全ての当番を処理する
func (m *Monitor) Tick(ctx context.Context) error {
	now := m.svc.Now()
	duties, err := m.svc.CurrentDuties(ctx, now, 0, 0, m.opts.StartOffset)
	if err != nil {
		return err
	}
	for i := range duties {
		d := duties[i]
		if err := m.advance(ctx, &d, now); err != nil {
			slog.Error("Failed to advance duty lifecycle",
				slog.Int64("duty_id", d.ID),
				slog.Int64("role_id", d.RoleID),
				slog.Any("err", err),
			)
		}
	}
	return nil
}

func (m *Monitor) advance(ctx context.Context, d *entity.Duty, now time.Time) error {
	if d.IsOpened {
		return nil
	}
	role := m.svc.roleName(ctx, d.RoleID)

	if !d.MarkerSet(entity.MarkerComing) {
		title, text := messages.DutyComing(role)
		if _, err := m.latch(ctx, d, entity.MarkerComing, now, false, notifier.NewEvent(title, text, d.UserID)); err != nil {
			return err
		}
		if d.IsOpened {
			return nil
		}
	}

	_, comingAt := d.Marker(entity.MarkerComing)
	if comingAt != nil && !d.MarkerSet(entity.MarkerReminder) && now.Sub(*comingAt) >= m.opts.StepDelay {
		title, text := messages.DutyReminder(role)
		if _, err := m.latch(ctx, d, entity.MarkerReminder, now, false, notifier.NewEvent(title, text, d.UserID)); err != nil {
			return err
		}
		if d.IsOpened {
			return nil
		}
	}
	_, remindedAt := d.Marker(entity.MarkerReminder)
	if remindedAt != nil && !d.MarkerSet(entity.MarkerNeedToOpen) && now.Sub(*remindedAt) >= m.opts.StepDelay {
		return m.forceOpen(ctx, d, role, now)
	}
	return nil
}

func (m *Monitor) forceOpen(ctx context.Context, d *entity.Duty, role string, now time.Time) error {
	title, text := messages.DutyForcedOpen(role)
	won, err := m.latch(ctx, d, entity.MarkerNeedToOpen, now, true, notifier.NewEvent(title, text, d.UserID))
	if err != nil || !won {
		return err
	}
	points := repository.DutyPointsByRole(ctx, m.svc.repo, d.RoleID)
	title, text = messages.DutyNotOpenedByUser(m.svc.userName(ctx, d.UserID), role)
	m.publisher.Dispatch(ctx, notifier.NewEvent(title, text, repository.PointAdminIDs(ctx, m.svc.repo, points...)...))
	return nil
}

// latch は通知IDを先に確保し、マーカーを取れた場合だけ通知を送る
func (m *Monitor) latch(ctx context.Context, d *entity.Duty, marker entity.DutyMarker, now time.Time, forceOpen bool, ev notifier.Event) (bool, error) {
	id, err := m.svc.repo.ReserveNotificationID(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reserve notification id: %w", err)
	}
	won, err := m.svc.repo.LatchDutyMarker(ctx, d.ID, marker, id, now, forceOpen)
	if err != nil {
		return false, fmt.Errorf("failed to latch %s marker: %w", marker, err)
	}
	if !won {
		// 他の tick が先に送っている
		latest, err := m.svc.repo.FindDuty(ctx, d.ID)
		if err != nil {
			return false, err
		}
		*d = *latest
		return false, nil
	}
	d.SetMarker(marker, id, now)
	if forceOpen {
		d.IsOpened = true
		d.IsForcedOpened = true
	}
	ev.ReservedID = id
	m.publisher.Dispatch(ctx, ev)
	return true, nil
}
