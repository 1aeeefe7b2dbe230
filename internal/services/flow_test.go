package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/eventbus"
	"photo-frame-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two devices pair up, share photos and drive each other's gallery through
// the in-process bus.
func TestTwoDeviceFlow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	objects := newMemObjects()
	bus := eventbus.New(nil)
	defer bus.Close()

	users := NewUserService(memUsers{store}, testSecret)
	pairs := newTestPairService(store, "QR7K2M")
	photos := NewPhotoService(memPhotos{store}, objects,
		&fakeProcessor{fail: map[string]error{"corrupt.jpg": apperrors.Processing(errors.New("truncated"))}}, bus)
	photos.now = func() time.Time { return fixedNow }
	events := NewEventService(memEvents{store}, memPairs{store}, bus, bus, nil)

	alex, _, err := users.SignUp(ctx, "alex@example.com", "password123")
	require.NoError(t, err)
	blair, _, err := users.SignUp(ctx, "blair@example.com", "password123")
	require.NoError(t, err)

	created, err := pairs.CreatePair(ctx, alex.ID, "Alex")
	require.NoError(t, err)
	assert.Equal(t, "QR7K2M", created.Pair.PairCode)

	joined, err := pairs.JoinPair(ctx, blair.ID, "qr7k2m", "Blair")
	require.NoError(t, err)
	assert.Equal(t, created.Pair.ID, joined.Pair.ID)
	assert.Equal(t, models.RoleB, joined.Member.DeviceRole)
	assert.Equal(t, "Alex", joined.PartnerName)

	pairID := created.Pair.ID
	subA, err := bus.Subscribe(ctx, pairID, models.RoleA)
	require.NoError(t, err)
	defer bus.Unsubscribe(subA)

	report, err := photos.UploadBatch(ctx, pairID, blair.ID, sources("one.jpg", "corrupt.jpg", "three.heic"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 3, report.Total)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, string(apperrors.ErrCodeProcessing), report.Failures[0].Code)

	listed, err := photos.ListPhotos(ctx, pairID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Less(t, listed[0].DisplayOrder, listed[1].DisplayOrder)

	for i := 0; i < 2; i++ {
		n := receive(t, subA)
		assert.Equal(t, models.NotifyPhotoInsert, n.Kind)
	}

	_, err = events.Publish(ctx, pairID, models.RoleB, models.EventPhotoNav, json.RawMessage(`{"index":1}`))
	require.NoError(t, err)

	n := receive(t, subA)
	require.Equal(t, models.NotifyEvent, n.Kind)
	assert.Equal(t, models.RoleB, n.Event.Sender)
	var nav models.PhotoNavPayload
	require.NoError(t, json.Unmarshal(n.Event.Payload, &nav))
	assert.Equal(t, 1, nav.Index)

	info, err := pairs.LoadPairInfo(ctx, alex.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, info.State.CurrentIndex)
	assert.Equal(t, "Blair", info.PartnerName)
}

func receive(t *testing.T, sub *eventbus.Subscription) models.Notification {
	t.Helper()
	select {
	case n := <-sub.C:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
		return models.Notification{}
	}
}
