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

type CoverageOptions struct {
	DaysAhead    int
	MinDaysAhead int
}

// Gap は休日割り当てが設定されていない期間とロール
type Gap struct {
	Period string
	RoleID int64
	Role   string
}

func (g Gap) String() string {
	return fmt.Sprintf("%s: %s", g.Period, g.Role)
}

type CoverageReport struct {
	Created []entity.Duty
	Gaps    []Gap
}

type MissingRole struct {
	RoleID int64
	Role   string
	Days   int
}

// Coverage は休日の当番を自動で埋める。既に当番があれば何もしない
type Coverage struct {
	svc       *Service
	publisher notifier.Publisher
	opts      CoverageOptions
}

func NewCoverage(svc *Service, publisher notifier.Publisher, opts CoverageOptions) *Coverage {
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = 14
	}
	if opts.MinDaysAhead < 0 {
		opts.MinDaysAhead = 0
	}
	return &Coverage{svc: svc, publisher: publisher, opts: opts}
}

func (c *Coverage) Ensure(ctx context.Context) (*CoverageReport, error) {
	today := c.svc.Today()
	end := today.AddDate(0, 0, c.opts.DaysAhead-1)

	report, err := c.ensureRanges(ctx, today, end)
	if err != nil {
		return report, err
	}

	if len(report.Gaps) > 0 {
		lines := make([]string, 0, len(report.Gaps))
		for _, g := range report.Gaps {
			lines = append(lines, g.String())
		}
		title, text := messages.CoverageGaps(lines)
		c.publisher.Dispatch(ctx, notifier.NewEvent(title, text, repository.DispatchAdminIDs(ctx, c.svc.repo)...))
	}
	slog.Info("weekend duties ensured",
		slog.Int("created", len(report.Created)),
		slog.Int("gaps", len(report.Gaps)),
	)
	return report, nil
}

func (c *Coverage) ensureRanges(ctx context.Context, start, end time.Time) (*CoverageReport, error) {
	report := &CoverageReport{}
	roles := repository.UsedDutyRoles(ctx, c.svc.repo)
	for _, r := range c.svc.cal.NonWorkingRanges(start, end) {
		for _, roleID := range roles {
			overlaps, err := c.svc.OverlapsRange(ctx, roleID, r.Start, r.End)
			if err != nil {
				return report, err
			}
			if overlaps {
				continue
			}
			a := c.assignmentFor(ctx, roleID, r.Start)
			if a == nil {
				report.Gaps = append(report.Gaps, Gap{Period: r.String(), RoleID: roleID, Role: c.svc.roleName(ctx, roleID)})
				continue
			}
			d, created, err := c.svc.GetOrCreateRange(ctx, r.Start, r.End, roleID, a.UserID)
			if err != nil {
				return report, err
			}
			if created {
				report.Created = append(report.Created, *d)
			}
		}
	}
	return report, nil
}

// assignmentFor は期間の初日の曜日に合う割り当てを優先する
func (c *Coverage) assignmentFor(ctx context.Context, roleID int64, start time.Time) *entity.WeekendDutyAssignment {
	weekday := start.Weekday()
	if a := repository.ActiveWeekendAssignment(ctx, c.svc.repo, roleID, &weekday); a != nil {
		return a
	}
	return repository.ActiveWeekendAssignment(ctx, c.svc.repo, roleID, nil)
}

// CheckMissing は先の当番が min_days_ahead 日に満たないロールを管理者に知らせる
func (c *Coverage) CheckMissing(ctx context.Context) ([]MissingRole, error) {
	today := c.svc.Today()
	var missing []MissingRole
	for _, roleID := range repository.UsedDutyRoles(ctx, c.svc.repo) {
		n, err := c.svc.AssignedDaysAhead(ctx, today, roleID)
		if err != nil {
			return missing, err
		}
		if n < c.opts.MinDaysAhead {
			missing = append(missing, MissingRole{RoleID: roleID, Role: c.svc.roleName(ctx, roleID), Days: n})
		}
	}
	if len(missing) > 0 {
		lines := make([]string, 0, len(missing))
		for _, m := range missing {
			lines = append(lines, fmt.Sprintf("%s: %d days", m.Role, m.Days))
		}
		title, text := messages.MissingDuties(lines)
		c.publisher.Dispatch(ctx, notifier.NewEvent(title, text, repository.DispatchAdminIDs(ctx, c.svc.repo)...))
	}
	return missing, nil
}
