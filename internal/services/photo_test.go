package services

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1760000000000)

type photoFixture struct {
	store   *memStore
	objects *memObjects
	bus     *recordingBus
	proc    *fakeProcessor
	svc     *PhotoService
}

func newPhotoFixture() *photoFixture {
	f := &photoFixture{
		store:   newMemStore(),
		objects: newMemObjects(),
		bus:     &recordingBus{},
		proc:    &fakeProcessor{fail: map[string]error{}},
	}
	f.svc = NewPhotoService(memPhotos{f.store}, f.objects, f.proc, f.bus)
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func sources(names ...string) []imaging.Source {
	out := make([]imaging.Source, len(names))
	for i, n := range names {
		out[i] = imaging.Source{Filename: n, Data: []byte(n)}
	}
	return out
}

func TestPhotoService_UploadBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("stores every file in order", func(t *testing.T) {
		f := newPhotoFixture()

		report, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", sources("a.jpg", "b.png"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, 2, report.Total)
		assert.False(t, report.Partial())
		assert.Empty(t, report.Failures)

		require.Len(t, report.Photos, 2)
		assert.Equal(t, "pair-1/1760000000000_0.jpg", report.Photos[0].StoragePath)
		assert.Equal(t, "1760000000000_1.jpg", report.Photos[1].Filename)
		assert.Equal(t, 0, report.Photos[0].DisplayOrder)
		assert.Equal(t, 1, report.Photos[1].DisplayOrder)
		assert.Equal(t,
			"https://cdn.example.com/storage/v1/object/public/photos/pair-1/1760000000000_0.jpg",
			report.Photos[0].URL)
		assert.True(t, f.objects.has("pair-1/1760000000000_1.jpg"))
		assert.Equal(t, []models.NotificationKind{models.NotifyPhotoInsert, models.NotifyPhotoInsert}, f.bus.kinds())
	})

	t.Run("display order continues after existing photos", func(t *testing.T) {
		f := newPhotoFixture()
		_, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", sources("a.jpg", "b.jpg"))
		require.NoError(t, err)

		f.svc.now = func() time.Time { return fixedNow.Add(time.Second) }
		report, err := f.svc.UploadBatch(ctx, "pair-1", "user-b", sources("c.jpg"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Photos[0].DisplayOrder)
	})

	t.Run("failing file does not abort the batch", func(t *testing.T) {
		f := newPhotoFixture()
		f.proc.fail["broken.heic"] = apperrors.Conversion(errors.New("bad heic"))

		report, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", sources("a.jpg", "broken.heic", "c.jpg"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, 3, report.Total)
		assert.True(t, report.Partial())

		require.Len(t, report.Failures, 1)
		assert.Equal(t, 1, report.Failures[0].Index)
		assert.Equal(t, "broken.heic", report.Failures[0].Filename)
		assert.Equal(t, string(apperrors.ErrCodeConversion), report.Failures[0].Code)

		// the failed slot keeps its index so later files keep theirs
		assert.Equal(t, 2, report.Photos[1].DisplayOrder)
		assert.Equal(t, "pair-1/1760000000000_2.jpg", report.Photos[1].StoragePath)
	})

	t.Run("storage failure is a backend error for that file", func(t *testing.T) {
		f := newPhotoFixture()
		f.objects.failPut["pair-1/1760000000000_0.jpg"] = true

		report, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", sources("a.jpg"))
		require.NoError(t, err)
		assert.Equal(t, 0, report.Succeeded)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, string(apperrors.ErrCodeBackend), report.Failures[0].Code)
	})

	t.Run("record failure removes the uploaded blob", func(t *testing.T) {
		f := newPhotoFixture()
		f.store.failPhotoCreate["pair-1/1760000000000_0.jpg"] = true

		report, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", sources("a.jpg"))
		require.NoError(t, err)
		assert.Equal(t, 0, report.Succeeded)
		assert.False(t, f.objects.has("pair-1/1760000000000_0.jpg"))
		assert.Empty(t, f.bus.kinds())
	})

	t.Run("empty batch", func(t *testing.T) {
		f := newPhotoFixture()
		_, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestPhotoService_DeletePhoto(t *testing.T) {
	ctx := context.Background()

	upload := func(t *testing.T, f *photoFixture) *models.Photo {
		report, err := f.svc.UploadBatch(ctx, "pair-1", "user-a", sources("a.jpg"))
		require.NoError(t, err)
		require.Len(t, report.Photos, 1)
		return report.Photos[0]
	}

	t.Run("removes blob and record", func(t *testing.T) {
		f := newPhotoFixture()
		photo := upload(t, f)

		require.NoError(t, f.svc.DeletePhoto(ctx, "pair-1", photo.ID))
		assert.False(t, f.objects.has(photo.StoragePath))
		photos, err := f.svc.ListPhotos(ctx, "pair-1")
		require.NoError(t, err)
		assert.Empty(t, photos)
		assert.Equal(t, models.NotifyPhotoDelete, f.bus.kinds()[1])
	})

	t.Run("photo of another pair is not found", func(t *testing.T) {
		f := newPhotoFixture()
		photo := upload(t, f)

		err := f.svc.DeletePhoto(ctx, "pair-2", photo.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.True(t, f.objects.has(photo.StoragePath))
	})

	t.Run("unknown photo", func(t *testing.T) {
		f := newPhotoFixture()
		err := f.svc.DeletePhoto(ctx, "pair-1", "missing")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("blob failure changes nothing", func(t *testing.T) {
		f := newPhotoFixture()
		photo := upload(t, f)
		f.objects.failDelete = true

		err := f.svc.DeletePhoto(ctx, "pair-1", photo.ID)
		assert.Equal(t, apperrors.ErrCodeBackend, apperrors.GetCode(err))
		photos, _ := f.svc.ListPhotos(ctx, "pair-1")
		assert.Len(t, photos, 1)
	})

	t.Run("record failure after blob removal is a partial delete", func(t *testing.T) {
		f := newPhotoFixture()
		photo := upload(t, f)
		f.store.failPhotoDelete = true

		err := f.svc.DeletePhoto(ctx, "pair-1", photo.ID)
		assert.Equal(t, apperrors.ErrCodePartialDelete, apperrors.GetCode(err))
		assert.False(t, f.objects.has(photo.StoragePath))
		assert.Equal(t, []models.NotificationKind{models.NotifyPhotoInsert}, f.bus.kinds())
	})
}
