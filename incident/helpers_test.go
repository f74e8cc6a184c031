package incident_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/dispatchd/calendar"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/incident"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("MSK", 3*60*60)

type fakePublisher struct {
	mu   sync.Mutex
	sent []notifier.Event
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
	f.sent = append(f.sent, events...)
}

func (f *fakePublisher) events() []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.Event{}, f.sent...)
}

func directory() *repository.Config {
	return &repository.Config{
		Timezone: "Europe/Moscow",
		UserList: []entity.User{
			{ID: 1, Username: "ivanov"},
			{ID: 2, Username: "petrov", FirstName: "Petr", LastName: "Petrov"},
			{ID: 3, Username: "sidorov"},
			{ID: 10, Username: "chief", IsDispatchAdmin: true},
			{ID: 11, Username: "dc-admin"},
			{ID: 20, Username: "operator"},
			{ID: 30, Username: "stranger"},
		},
		DutyRoleList: []entity.DutyRole{
			{ID: 1, Name: "Network"},
			{ID: 2, Name: "Power"},
			{ID: 3, Name: "Management"},
		},
		ExploitationRoleList: []entity.ExploitationRole{
			{ID: 1, Name: "Operators", Members: []int64{20}},
		},
		DutyPointList: []entity.DutyPoint{
			{ID: 1, Name: "Moscow DC", Level0Role: 1, Level2Role: 2, Level3Role: 3, Admins: []int64{11}},
			{ID: 2, Name: "Kazan DC", Level1Role: 1, Level2Role: 2, Level3Role: 3},
		},
	}
}

type fixture struct {
	repo      repository.Repository
	svc       *duty.Service
	engine    *incident.Engine
	publisher *fakePublisher
}

// newFixture は 2025-03-03 18:00 を現在時刻にする
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cal, err := calendar.New(msk, nil, nil)
	require.NoError(t, err)
	f := &fixture{
		repo:      repository.NewRepository(repository.NewMemoryRepository(), directory()),
		publisher: &fakePublisher{},
	}
	f.svc = duty.NewService(f.repo, cal)
	f.svc.SetClock(func() time.Time { return time.Date(2025, time.March, 3, 18, 0, 0, 0, msk) })
	f.engine = incident.NewEngine(f.svc, f.publisher)
	return f
}

// onDuty は当日の当番を作る
func (f *fixture) onDuty(t *testing.T, roleID, userID int64, opened bool) *entity.Duty {
	t.Helper()
	ctx := context.Background()
	d, _, err := f.svc.GetOrCreate(ctx, time.Date(2025, time.March, 3, 0, 0, 0, 0, msk), roleID, userID)
	require.NoError(t, err)
	if opened {
		d.IsOpened = true
		require.NoError(t, f.repo.SaveDuty(ctx, d))
	}
	return d
}
