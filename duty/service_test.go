package duty_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsUniquePerRoleAndDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2025, time.March, 3, 9, 0))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[int64]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			d, ok, err := f.svc.GetOrCreate(ctx, date(2025, time.March, 3), 1, userID)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[d.ID] = true
		}(int64(i%3 + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	duties, err := f.svc.DutiesOn(ctx, date(2025, time.March, 3), 1)
	require.NoError(t, err)
	require.Len(t, duties, 1)
	assert.Equal(t, at(2025, time.March, 3, 17, 30), duties[0].Start)
	assert.Equal(t, at(2025, time.March, 4, 8, 30), duties[0].End)
}

func TestGetOrCreateKeepsExistingHolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2025, time.March, 3, 9, 0))

	_, created, err := f.svc.GetOrCreate(ctx, date(2025, time.March, 3), 1, 1)
	require.NoError(t, err)
	assert.True(t, created)

	d, created, err := f.svc.GetOrCreate(ctx, date(2025, time.March, 3), 1, 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), d.UserID)
}

func TestCurrentDuties(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2025, time.March, 3, 9, 0))
	_, _, err := f.svc.GetOrCreate(ctx, date(2025, time.March, 3), 1, 1)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"before offset", at(2025, time.March, 3, 16, 59), 0},
		{"within offset", at(2025, time.March, 3, 17, 0), 1},
		{"overnight", at(2025, time.March, 4, 3, 0), 1},
		{"ended", at(2025, time.March, 4, 8, 30), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duties, err := f.svc.CurrentDuties(ctx, tt.at, 0, 0, 30*time.Minute)
			require.NoError(t, err)
			assert.Len(t, duties, tt.want)
		})
	}

	duties, err := f.svc.CurrentDuties(ctx, at(2025, time.March, 3, 18, 0), 2, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, duties)
}

func TestAssignedDaysAhead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2025, time.March, 3, 9, 0))

	n, err := f.svc.AssignedDaysAhead(ctx, date(2025, time.March, 3), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for _, d := range []int{3, 4, 5} {
		_, _, err := f.svc.GetOrCreate(ctx, date(2025, time.March, d), 1, 1)
		require.NoError(t, err)
	}
	_, _, err = f.svc.GetOrCreateRange(ctx, date(2025, time.March, 6), date(2025, time.March, 9), 1, 2)
	require.NoError(t, err)
	_, _, err = f.svc.GetOrCreate(ctx, date(2025, time.March, 11), 1, 1)
	require.NoError(t, err)

	n, err = f.svc.AssignedDaysAhead(ctx, date(2025, time.March, 3), 1)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = f.svc.AssignedDaysAhead(ctx, date(2025, time.March, 8), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.AssignedDaysAhead(ctx, date(2025, time.March, 3), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOverlapsAndDeleteRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2025, time.March, 3, 9, 0))
	_, _, err := f.svc.GetOrCreate(ctx, date(2025, time.March, 5), 1, 1)
	require.NoError(t, err)
	_, _, err = f.svc.GetOrCreate(ctx, date(2025, time.March, 6), 1, 1)
	require.NoError(t, err)

	ok, err := f.svc.OverlapsRange(ctx, 1, date(2025, time.March, 4), date(2025, time.March, 5))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.OverlapsRange(ctx, 2, date(2025, time.March, 4), date(2025, time.March, 5))
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := f.svc.DeleteRange(ctx, date(2025, time.March, 1), date(2025, time.March, 5), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.AssignedDaysAhead(ctx, date(2025, time.March, 6), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
