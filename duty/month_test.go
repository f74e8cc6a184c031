package duty_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthCalendar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, at(2025, time.March, 1, 9, 0))

	_, _, err := f.svc.GetOrCreate(ctx, date(2025, time.March, 3), 1, 1)
	require.NoError(t, err)
	_, _, err = f.svc.GetOrCreateRange(ctx, date(2025, time.March, 8), date(2025, time.March, 9), 1, 10)
	require.NoError(t, err)
	_, _, err = f.svc.GetOrCreate(ctx, date(2025, time.March, 4), 2, 2)
	require.NoError(t, err)

	m, err := f.svc.MonthCalendar(ctx, 2025, time.March, 1)
	require.NoError(t, err)
	require.Len(t, m.Weeks, 6)
	assert.Equal(t, "2025-02-24", m.Weeks[0][0].Date)
	assert.False(t, m.Weeks[0][0].InMonth)
	assert.Equal(t, "2025-04-06", m.Weeks[5][6].Date)

	mon := m.Weeks[1][0]
	assert.Equal(t, "2025-03-03", mon.Date)
	assert.True(t, mon.IsWorkday)
	require.Len(t, mon.Duties, 1)
	assert.Equal(t, "Ivanov Ivan", mon.Duties[0].UserName)
	assert.Equal(t, 1, mon.Duties[0].Color)

	assert.Empty(t, m.Weeks[1][1].Duties, "role 2 is filtered out")

	sat, sun := m.Weeks[1][5], m.Weeks[1][6]
	assert.False(t, sat.IsWorkday)
	require.Len(t, sat.Duties, 1)
	require.Len(t, sun.Duties, 1)
	assert.Equal(t, sat.Duties[0].DutyID, sun.Duties[0].DutyID)
	assert.Equal(t, 2, sun.Duties[0].Color)

	_, err = f.svc.MonthCalendar(ctx, 2025, 13, 1)
	assert.Error(t, err)
}
