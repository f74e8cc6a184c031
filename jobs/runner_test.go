package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pyama86/dispatchd/calendar"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/jobs"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerRegisterRejectsBadSpec(t *testing.T) {
	r := jobs.NewRunner(time.UTC)
	err := r.Register("broken", "every minute", func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.Empty(t, r.Names())
}

func TestRunnerRun(t *testing.T) {
	ctx := context.Background()
	r := jobs.NewRunner(time.UTC)
	var calls int32
	require.NoError(t, r.Register("count", "@every 1h", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	boom := errors.New("boom")
	require.NoError(t, r.Register("fail", "@daily", func(context.Context) error { return boom }))

	require.NoError(t, r.Run(ctx, "count"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.ErrorIs(t, r.Run(ctx, "fail"), boom)
	assert.Error(t, r.Run(ctx, "missing"))
	assert.Equal(t, []string{"count", "fail"}, r.Names())
}

func TestRunnerStartStop(t *testing.T) {
	r := jobs.NewRunner(time.UTC)
	var calls int32
	require.NoError(t, r.Register("tick", "@every 1s", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Start(context.Background()))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) > 0 }, 3*time.Second, 50*time.Millisecond)
	r.Stop()
	r.Stop()
}

type nopPublisher struct{}

func (nopPublisher) Dispatch(context.Context, ...notifier.Event) []entity.Notification { return nil }
func (nopPublisher) Enqueue(...notifier.Event)                                         {}

func TestDispatchRunner(t *testing.T) {
	ctx := context.Background()
	dir := &repository.Config{
		UserList:              []entity.User{{ID: 1, Username: "ivanov"}},
		DutyRoleList:          []entity.DutyRole{{ID: 1, Name: "Network"}},
		DutyPointList:         []entity.DutyPoint{{ID: 1, Name: "DC", Level1Role: 1}},
		WeekendAssignmentList: []entity.WeekendDutyAssignment{{ID: 1, RoleID: 1, UserID: 1}},
	}
	repo := repository.NewRepository(repository.NewMemoryRepository(), dir)
	cal, err := calendar.New(time.UTC, nil, nil)
	require.NoError(t, err)
	svc := duty.NewService(repo, cal)
	// 2025-03-07 は金曜日
	svc.SetClock(func() time.Time { return time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC) })

	r, err := jobs.NewDispatchRunner(time.UTC, repository.JobsConfig{
		NeedToOpenNotification: "@every 1m",
		CheckMissingDuties:     "@every 24h",
		EnsureWeekendDuties:    "@every 24h",
	},
		duty.NewMonitor(svc, nopPublisher{}, duty.MonitorOptions{}),
		duty.NewCoverage(svc, nopPublisher{}, duty.CoverageOptions{DaysAhead: 3}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{jobs.CheckMissingDuties, jobs.EnsureWeekendDuties, jobs.NeedToOpenNotification}, r.Names())

	require.NoError(t, r.Run(ctx, jobs.EnsureWeekendDuties))
	duties, err := svc.List(ctx, repository.DutyFilter{RoleID: 1})
	require.NoError(t, err)
	require.Len(t, duties, 1)
	assert.Equal(t, "2025-03-08", duties[0].Date)

	require.NoError(t, r.Run(ctx, jobs.NeedToOpenNotification))
	require.NoError(t, r.Run(ctx, jobs.CheckMissingDuties))
}
