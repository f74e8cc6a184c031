package incident_test

import (
	"context"
	"testing"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEscalatesToFirstOpenedLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 2, 2, true)
	f.onDuty(t, 3, 3, false)

	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "UPS alarm", PointID: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, inc.Level)
	assert.Equal(t, int64(2), inc.ResponsibleUserID)
	assert.Equal(t, entity.IncidentStatusWaitingToBeAccepted, inc.Status)
	assert.False(t, inc.IsCritical)

	stored, err := f.engine.Find(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, inc, stored)

	events := f.publisher.events()
	require.Len(t, events, 2)
	assert.Equal(t, []int64{2}, events[0].UserIDs)
	assert.ElementsMatch(t, []int64{10, 11}, events[1].UserIDs)

	msgs, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsSystem())
	text, _ := msgs[0].Payload()
	assert.Contains(t, text, "Petrov Petr")
}

func TestEscalationReachesCriticalWhenNobodyOpened(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 1, 1, false)
	f.onDuty(t, 2, 2, false)
	f.onDuty(t, 3, 3, false)

	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "Fire", PointID: 2})
	require.NoError(t, err)
	assert.Equal(t, entity.MaxEscalationLevel, inc.Level)
	assert.True(t, inc.IsCritical)
	assert.False(t, inc.HasResponsible())
	assert.Equal(t, entity.IncidentStatusOpened, inc.Status)

	msgs, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	// 未オープンのレベルごとに1件と、critical の1件
	assert.Len(t, msgs, 4)

	_, err = f.engine.Escalate(ctx, inc.ID, 10)
	var verr *entity.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestEscalationSkipsLevelsWithoutDuty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 3, 3, true)

	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "Leak", PointID: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, inc.Level)
	assert.Equal(t, int64(3), inc.ResponsibleUserID)

	msgs, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(context.Background(), 20, incident.CreateRequest{Name: " ", PointID: 99})
	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "point_id")
}

func TestEscalatePermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 2, 2, true)
	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "UPS alarm", PointID: 1})
	require.NoError(t, err)

	_, err = f.engine.Escalate(ctx, inc.ID, 30)
	assert.ErrorIs(t, err, entity.ErrPermissionDenied)

	got, err := f.engine.Escalate(ctx, inc.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, entity.MaxEscalationLevel, got.Level)
	assert.True(t, got.IsCritical)
}

func TestAcceptanceOnlyByResponsible(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 2, 2, true)
	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "UPS alarm", PointID: 1})
	require.NoError(t, err)
	require.Equal(t, entity.IncidentStatusWaitingToBeAccepted, inc.Status)

	_, err = f.engine.ChangeStatus(ctx, inc.ID, 11, "opened")
	assert.ErrorIs(t, err, entity.ErrPermissionDenied)
	stored, err := f.engine.Find(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.IncidentStatusWaitingToBeAccepted, stored.Status)

	_, err = f.engine.ChangeStatus(ctx, inc.ID, 30, "closed")
	assert.ErrorIs(t, err, entity.ErrPermissionDenied)

	got, err := f.engine.ChangeStatus(ctx, inc.ID, 2, "opened")
	require.NoError(t, err)
	assert.Equal(t, entity.IncidentStatusOpened, got.Status)

	msgs, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	text, _ := msgs[0].Payload()
	assert.Contains(t, text, "accepted")
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 2, 2, true)
	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "UPS alarm", PointID: 1})
	require.NoError(t, err)
	_, err = f.engine.ChangeStatus(ctx, inc.ID, 2, "opened")
	require.NoError(t, err)

	_, err = f.engine.ChangeStatus(ctx, inc.ID, 2, "bogus")
	var verr *entity.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.engine.ChangeStatus(ctx, inc.ID, 2, "force_closed")
	assert.ErrorIs(t, err, entity.ErrPermissionDenied)

	before, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	_, err = f.engine.ChangeStatus(ctx, inc.ID, 2, "opened")
	require.NoError(t, err)
	after, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "same status records nothing")

	got, err := f.engine.ChangeStatus(ctx, inc.ID, 11, "force_closed")
	require.NoError(t, err)
	assert.Equal(t, entity.IncidentStatusForceClosed, got.Status)

	got, err = f.engine.ChangeStatus(ctx, inc.ID, 2, "opened")
	require.NoError(t, err)
	assert.Equal(t, entity.IncidentStatusOpened, got.Status)

	msgs, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	text, _ := msgs[0].Payload()
	assert.Contains(t, text, "reopened")
}

func TestAvailableActions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 2, 2, true)
	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "UPS alarm", PointID: 1})
	require.NoError(t, err)

	actions, err := f.engine.AvailableActions(ctx, inc.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, actions, "waiting for acceptance")

	actions, err = f.engine.AvailableActions(ctx, inc.ID, 11)
	require.NoError(t, err)
	assert.Equal(t, []string{"opened", "closed", "escalate", "force_closed"}, actions)

	_, err = f.engine.ChangeStatus(ctx, inc.ID, 2, "opened")
	require.NoError(t, err)
	actions, err = f.engine.AvailableActions(ctx, inc.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"closed", "escalate"}, actions)

	actions, err = f.engine.AvailableActions(ctx, inc.ID, 30)
	require.NoError(t, err)
	assert.Empty(t, actions)
}
