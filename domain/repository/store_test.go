package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stores = map[string]func(t *testing.T) repository.Store{
	"memory": func(t *testing.T) repository.Store {
		return repository.NewMemoryRepository()
	},
	"sqlite": func(t *testing.T) repository.Store {
		r, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "dispatchd.db"))
		require.NoError(t, err)
		return r
	},
}

func eachStore(t *testing.T, fn func(t *testing.T, s repository.Store)) {
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func newDuty(roleID, userID int64, date string) *entity.Duty {
	day, _ := time.ParseInLocation(entity.DateLayout, date, time.UTC)
	return &entity.Duty{
		RoleID: roleID,
		UserID: userID,
		Date:   date,
		Start:  day.Add(17*time.Hour + 30*time.Minute),
		End:    day.Add(32*time.Hour + 30*time.Minute),
	}
}

func TestStoreDutySlotIsUnique(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			ids     = map[int64]bool{}
		)
		for i := int64(1); i <= 8; i++ {
			wg.Add(1)
			go func(userID int64) {
				defer wg.Done()
				d := newDuty(1, userID, "2025-03-03")
				ok, err := s.CreateDutyIfAbsent(ctx, d)
				assert.NoError(t, err)
				mu.Lock()
				defer mu.Unlock()
				if ok {
					created++
				}
				ids[d.ID] = true
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, created)
		assert.Len(t, ids, 1)

		other := newDuty(1, 2, "2025-03-04")
		ok, err := s.CreateDutyIfAbsent(ctx, other)
		require.NoError(t, err)
		require.True(t, ok)

		// 埋まっている枠へは移動できない
		other.Date = "2025-03-03"
		assert.ErrorIs(t, s.SaveDuty(ctx, other), entity.ErrConflict)
	})
}

func TestStoreListAndDeleteDuties(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		for _, date := range []string{"2025-03-03", "2025-03-04", "2025-03-05"} {
			_, err := s.CreateDutyIfAbsent(ctx, newDuty(1, 1, date))
			require.NoError(t, err)
		}
		_, err := s.CreateDutyIfAbsent(ctx, newDuty(2, 2, "2025-03-04"))
		require.NoError(t, err)

		duties, err := s.ListDuties(ctx, repository.DutyFilter{FromDate: "2025-03-04", ToDate: "2025-03-04"})
		require.NoError(t, err)
		require.Len(t, duties, 2)
		assert.Equal(t, int64(1), duties[0].RoleID)
		assert.Equal(t, int64(2), duties[1].RoleID)

		d := duties[0]
		d.IsOpened = true
		require.NoError(t, s.SaveDuty(ctx, &d))
		opened := true
		duties, err = s.ListDuties(ctx, repository.DutyFilter{IsOpened: &opened})
		require.NoError(t, err)
		require.Len(t, duties, 1)
		assert.Equal(t, d.ID, duties[0].ID)

		at := time.Date(2025, time.March, 4, 20, 0, 0, 0, time.UTC)
		duties, err = s.ListDuties(ctx, repository.DutyFilter{UserID: 1, StartBefore: at, EndAfter: at})
		require.NoError(t, err)
		require.Len(t, duties, 1)
		assert.Equal(t, "2025-03-04", duties[0].Date)
		assert.True(t, duties[0].Start.Equal(time.Date(2025, time.March, 4, 17, 30, 0, 0, time.UTC)))

		n, err := s.DeleteDuties(ctx, 1, "2025-03-04", "2025-03-05")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		duties, err = s.ListDuties(ctx, repository.DutyFilter{RoleID: 1})
		require.NoError(t, err)
		assert.Len(t, duties, 1)

		_, err = s.FindDuty(ctx, d.ID)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})
}

func TestStoreLatchDutyMarker(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		d := newDuty(1, 1, "2025-03-03")
		_, err := s.CreateDutyIfAbsent(ctx, d)
		require.NoError(t, err)
		at := time.Date(2025, time.March, 3, 17, 0, 0, 0, time.UTC)

		ok, err := s.LatchDutyMarker(ctx, d.ID, entity.MarkerNeedToOpen, 42, at, true)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.LatchDutyMarker(ctx, d.ID, entity.MarkerNeedToOpen, 43, at, true)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.FindDuty(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, got.IsOpened)
		assert.True(t, got.IsForcedOpened)
		id, latchedAt := got.Marker(entity.MarkerNeedToOpen)
		require.NotNil(t, id)
		assert.Equal(t, int64(42), *id)
		require.NotNil(t, latchedAt)
		assert.True(t, latchedAt.Equal(at))
		assert.False(t, got.MarkerSet(entity.MarkerComing))

		_, err = s.LatchDutyMarker(ctx, 999, entity.MarkerComing, 1, at, false)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})
}

func TestStoreLatchSkipsOpenedDuty(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		d := newDuty(1, 1, "2025-03-03")
		_, err := s.CreateDutyIfAbsent(ctx, d)
		require.NoError(t, err)
		at := time.Date(2025, time.March, 3, 17, 0, 0, 0, time.UTC)

		ok, err := s.LatchDutyMarker(ctx, d.ID, entity.MarkerComing, 1, at, false)
		require.NoError(t, err)
		require.True(t, ok)

		opened, err := s.OpenDuty(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, opened)
		opened, err = s.OpenDuty(ctx, d.ID)
		require.NoError(t, err)
		assert.False(t, opened, "already opened")

		for _, m := range []entity.DutyMarker{entity.MarkerReminder, entity.MarkerNeedToOpen} {
			ok, err := s.LatchDutyMarker(ctx, d.ID, m, 2, at, m == entity.MarkerNeedToOpen)
			require.NoError(t, err)
			assert.False(t, ok, m)
		}

		got, err := s.FindDuty(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, got.IsOpened)
		assert.False(t, got.IsForcedOpened)
		assert.True(t, got.MarkerSet(entity.MarkerComing), "open keeps latched markers")
		assert.False(t, got.MarkerSet(entity.MarkerReminder))
		assert.False(t, got.MarkerSet(entity.MarkerNeedToOpen))

		_, err = s.OpenDuty(ctx, 999)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})
}

func TestStoreDutyActions(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		at := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
		first := &entity.DutyAction{DutyID: 1, UserID: 1, ActionType: entity.DutyActionRefusal, Reason: entity.DefaultActionReason, CreatedAt: at}
		second := &entity.DutyAction{DutyID: 1, UserID: 1, ActionType: entity.DutyActionTransfer, Reason: "sick", NewUserID: 2, CreatedAt: at}
		require.NoError(t, s.CreateDutyAction(ctx, first))
		require.NoError(t, s.CreateDutyAction(ctx, second))

		first.Resolve(10, at.Add(time.Hour))
		require.NoError(t, s.SaveDutyAction(ctx, first))

		unresolved, err := s.ListDutyActions(ctx, 1, true)
		require.NoError(t, err)
		require.Len(t, unresolved, 1)
		assert.Equal(t, second.ID, unresolved[0].ID)
		assert.Equal(t, int64(2), unresolved[0].NewUserID)

		all, err := s.ListDutyActions(ctx, 1, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		got, err := s.FindDutyAction(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, got.IsResolved)
		assert.Equal(t, int64(10), got.ResolvedBy)
	})
}

func TestStoreIncidentsAndMessages(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		march := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
		april := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
		a := &entity.Incident{Name: "UPS", Status: entity.IncidentStatusOpened, AuthorID: 20, PointID: 1, CreatedAt: march}
		b := &entity.Incident{Name: "Fiber", Status: entity.IncidentStatusClosed, AuthorID: 20, PointID: 2, CreatedAt: april}
		require.NoError(t, s.CreateIncident(ctx, a))
		require.NoError(t, s.CreateIncident(ctx, b))

		all, err := s.ListIncidents(ctx, repository.IncidentFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, b.ID, all[0].ID)

		// To は含まない
		inMarch, err := s.ListIncidents(ctx, repository.IncidentFilter{From: march, To: april})
		require.NoError(t, err)
		require.Len(t, inMarch, 1)
		assert.Equal(t, a.ID, inMarch[0].ID)

		a.Level, a.IsCritical, a.ResponsibleUserID = 4, true, 0
		require.NoError(t, s.SaveIncident(ctx, a))
		got, err := s.FindIncident(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, got.Level)
		assert.True(t, got.IsCritical)

		require.NoError(t, s.AddIncidentMessage(ctx, &entity.IncidentMessage{
			IncidentID: a.ID, CreatedAt: march, Content: entity.TextContent{Text: "escalated"},
		}))
		require.NoError(t, s.AddIncidentMessage(ctx, &entity.IncidentMessage{
			IncidentID: a.ID, UserID: 1, CreatedAt: march, Content: entity.PhotoContent{URL: "https://example.com/ups.jpg"},
		}))
		msgs, err := s.ListIncidentMessages(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, entity.MessageKindPhoto, msgs[0].Kind())
		_, url := msgs[0].Payload()
		assert.Equal(t, "https://example.com/ups.jpg", url)
		assert.True(t, msgs[1].IsSystem())

		_, err = s.FindIncident(ctx, 999)
		assert.True(t, errors.Is(err, entity.ErrNotFound))
	})
}

func TestStoreNotifications(t *testing.T) {
	eachStore(t, func(t *testing.T, s repository.Store) {
		ctx := context.Background()
		reserved, err := s.ReserveNotificationID(ctx)
		require.NoError(t, err)

		first := &entity.Notification{ID: reserved, UserID: 1, Title: "reserved", Source: entity.NotificationSourceDispatch, DutyActionID: 5}
		require.NoError(t, s.CreateNotification(ctx, first))
		assert.ErrorIs(t, s.CreateNotification(ctx, &entity.Notification{ID: reserved, UserID: 2}), entity.ErrConflict)

		second := &entity.Notification{UserID: 1, Title: "auto", Source: entity.NotificationSourceSystem}
		require.NoError(t, s.CreateNotification(ctx, second))
		assert.NotEqual(t, reserved, second.ID)
		require.NoError(t, s.CreateNotification(ctx, &entity.Notification{UserID: 2, Title: "someone else"}))

		list, err := s.ListNotifications(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)

		require.NoError(t, s.MarkNotificationSeen(ctx, first.ID))
		got, err := s.FindNotification(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, got.IsSeen)
		assert.Equal(t, int64(5), got.DutyActionID)

		assert.ErrorIs(t, s.MarkNotificationSeen(ctx, 999), entity.ErrNotFound)
	})
}
