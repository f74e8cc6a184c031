package incident_test

import (
	"context"
	"testing"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/incident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(incidents []entity.Incident) []int64 {
	var out []int64
	for _, i := range incidents {
		out = append(out, i.ID)
	}
	return out
}

func TestVisibleTo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 2, 2, true)

	moscow, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "UPS alarm", PointID: 1})
	require.NoError(t, err)
	kazan, err := f.engine.Create(ctx, 1, incident.CreateRequest{Name: "Door", PointID: 2})
	require.NoError(t, err)

	tests := []struct {
		name string
		user int64
		want []int64
	}{
		{"dispatch admin sees all", 10, []int64{kazan.ID, moscow.ID}},
		{"point admin", 11, []int64{moscow.ID}},
		{"author", 1, []int64{kazan.ID}},
		{"responsible", 2, []int64{kazan.ID, moscow.ID}},
		{"stranger", 30, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.VisibleTo(ctx, tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRelatedPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 1, 1, false)

	points, err := f.engine.RelatedPoints(ctx, 20)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Moscow DC", points[0].Name)

	points, err = f.engine.RelatedPoints(ctx, 1)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Kazan DC", points[0].Name)

	points, err = f.engine.RelatedPoints(ctx, 30)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestHasAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.onDuty(t, 1, 1, false)

	for _, id := range []int64{1, 10, 11, 20} {
		ok, err := f.engine.HasAccess(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "user %d", id)
	}
	ok, err := f.engine.HasAccess(ctx, 30)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.engine.HasAccess(ctx, 999)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inc, err := f.engine.Create(ctx, 20, incident.CreateRequest{Name: "Door", PointID: 2})
	require.NoError(t, err)

	_, err = f.engine.AddMessage(ctx, inc.ID, 20, "sticker", "hi", "")
	var verr *entity.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.engine.AddMessage(ctx, inc.ID, 20, entity.MessageKindPhoto, "", "")
	assert.ErrorAs(t, err, &verr)

	_, err = f.engine.AddMessage(ctx, inc.ID, 20, entity.MessageKindText, "on my way", "")
	require.NoError(t, err)
	_, err = f.engine.AddMessage(ctx, inc.ID, 20, entity.MessageKindPhoto, "", "https://cdn.example.com/door.jpg")
	require.NoError(t, err)

	msgs, err := f.engine.Messages(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, entity.MessageKindPhoto, msgs[0].Kind())
	_, url := msgs[0].Payload()
	assert.Equal(t, "https://cdn.example.com/door.jpg", url)
	assert.Equal(t, entity.MessageKindText, msgs[1].Kind())

	_, err = f.engine.AddMessage(ctx, 999, 20, entity.MessageKindText, "x", "")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
