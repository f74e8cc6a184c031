package duty_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/dispatchd/calendar"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("MSK", 3*60*60)

type fakePublisher struct {
	mu       sync.Mutex
	sent     []notifier.Event
	enqueued []notifier.Event
}

func (f *fakePublisher) Dispatch(_ context.Context, events ...notifier.Event) []entity.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, events...)
	return nil
}

func (f *fakePublisher) Enqueue(events ...notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, events...)
}

func (f *fakePublisher) events() []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.Event{}, f.sent...)
}

func (f *fakePublisher) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.enqueued = nil
}

func directory() *repository.Config {
	return &repository.Config{
		Timezone: "Europe/Moscow",
		UserList: []entity.User{
			{ID: 1, Username: "ivanov", FirstName: "Ivan", LastName: "Ivanov"},
			{ID: 2, Username: "petrov"},
			{ID: 3, Username: "sidorov"},
			{ID: 10, Username: "chief", IsDispatchAdmin: true},
			{ID: 11, Username: "dc-admin"},
			{ID: 20, Username: "operator"},
		},
		DutyRoleList: []entity.DutyRole{
			{ID: 1, Name: "Network"},
			{ID: 2, Name: "Power"},
		},
		ExploitationRoleList: []entity.ExploitationRole{
			{ID: 1, Name: "Operators", Members: []int64{20}},
		},
		DutyPointList: []entity.DutyPoint{
			{ID: 1, Name: "Moscow DC", Level0Role: 1, Level1Role: 1, Level2Role: 2, Admins: []int64{11}},
		},
		WeekendAssignmentList: []entity.WeekendDutyAssignment{
			{ID: 1, RoleID: 1, UserID: 3},
		},
	}
}

type fixture struct {
	repo      repository.Repository
	cal       *calendar.Calendar
	svc       *duty.Service
	publisher *fakePublisher
	now       time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	return newFixtureWith(t, now, directory())
}

func newFixtureWith(t *testing.T, now time.Time, dir *repository.Config) *fixture {
	t.Helper()
	cal, err := calendar.New(msk, nil, nil)
	require.NoError(t, err)
	f := &fixture{
		repo:      repository.NewRepository(repository.NewMemoryRepository(), dir),
		cal:       cal,
		publisher: &fakePublisher{},
		now:       now,
	}
	f.svc = duty.NewService(f.repo, cal)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

// serviceOver は f.repo を差し替えた Service を返す
func (f *fixture) serviceOver(repo repository.Repository) *duty.Service {
	svc := duty.NewService(repo, f.cal)
	svc.SetClock(func() time.Time { return f.now })
	return svc
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, msk)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, msk)
}
