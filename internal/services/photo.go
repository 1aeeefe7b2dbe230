package services

import (
	"context"
	"errors"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"
	"photo-frame-portal/internal/repository"
	"photo-frame-portal/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PhotoService stores processed photos and their metadata for a pair
type PhotoService struct {
	photoRepo PhotoStore
	objects   ObjectStore
	processor Processor
	bus       Publisher
	now       func() time.Time
}

// NewPhotoService creates a new photo service
func NewPhotoService(photoRepo PhotoStore, objects ObjectStore, processor Processor, bus Publisher) *PhotoService {
	return &PhotoService{
		photoRepo: photoRepo,
		objects:   objects,
		processor: processor,
		bus:       bus,
		now:       time.Now,
	}
}

// UploadBatch preprocesses, stores and records each file in order. A failing
// file is reported and skipped; it never aborts the rest of the batch.
func (s *PhotoService) UploadBatch(ctx context.Context, pairID, uploaderID string, files []imaging.Source) (*models.UploadReport, error) {
	if len(files) == 0 {
		return nil, apperrors.ValidationError("no files to upload")
	}

	count, err := s.photoRepo.CountByPairID(ctx, pairID)
	if err != nil {
		return nil, apperrors.Backend("count photos", err)
	}

	report := &models.UploadReport{Total: len(files), Photos: make([]*models.Photo, 0, len(files))}
	for i, file := range files {
		photo, err := s.uploadOne(ctx, pairID, uploaderID, count+i, i, file)
		if err != nil {
			appErr, ok := apperrors.AsAppError(err)
			if !ok {
				appErr = apperrors.Internal(err.Error())
			}
			log.Warn().
				Err(err).
				Str("pair_id", pairID).
				Int("index", i).
				Str("filename", file.Filename).
				Msg("Failed to upload photo")
			report.Failures = append(report.Failures, models.FileFailure{
				Index:    i,
				Filename: file.Filename,
				Code:     string(appErr.Code),
				Message:  appErr.Message,
			})
			continue
		}
		report.Succeeded++
		report.Photos = append(report.Photos, photo)
	}

	log.Info().
		Str("pair_id", pairID).
		Int("succeeded", report.Succeeded).
		Int("total", report.Total).
		Msg("Photo batch uploaded")

	return report, nil
}

func (s *PhotoService) uploadOne(ctx context.Context, pairID, uploaderID string, order, batchIndex int, file imaging.Source) (*models.Photo, error) {
	data, err := s.processor.Process(ctx, file)
	if err != nil {
		return nil, err
	}

	now := s.now()
	path, filename := storage.PhotoPath(pairID, now.UnixMilli(), batchIndex)
	if err := s.objects.Put(ctx, path, data, "image/jpeg"); err != nil {
		return nil, apperrors.Backend("upload photo", err)
	}

	photo := &models.Photo{
		ID:           uuid.New().String(),
		PairID:       pairID,
		StoragePath:  path,
		Filename:     filename,
		DisplayOrder: order,
		UploadedBy:   uploaderID,
		CreatedAt:    now,
	}
	if err := s.photoRepo.Create(ctx, photo); err != nil {
		if delErr := s.objects.Delete(ctx, path); delErr != nil {
			log.Error().Err(delErr).Str("storage_path", path).Msg("Failed to remove orphaned photo blob")
		}
		return nil, apperrors.Backend("record photo", err)
	}
	photo.URL = s.objects.PublicURL(path)

	s.notify(ctx, models.NotifyPhotoInsert, photo)
	return photo, nil
}

// ListPhotos returns the pair's photos in display order
func (s *PhotoService) ListPhotos(ctx context.Context, pairID string) ([]*models.Photo, error) {
	photos, err := s.photoRepo.ListByPairID(ctx, pairID)
	if err != nil {
		return nil, apperrors.Backend("list photos", err)
	}
	for _, p := range photos {
		p.URL = s.objects.PublicURL(p.StoragePath)
	}
	return photos, nil
}

// DeletePhoto removes the blob and then the record. When the blob is gone but
// the record survives the error is PARTIAL_DELETE.
func (s *PhotoService) DeletePhoto(ctx context.Context, pairID, photoID string) error {
	if _, err := uuid.Parse(photoID); err != nil {
		return apperrors.NotFound("Photo")
	}

	photo, err := s.photoRepo.GetByID(ctx, photoID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Photo")
		}
		return apperrors.Backend("get photo", err)
	}
	if photo.PairID != pairID {
		return apperrors.NotFound("Photo")
	}

	if err := s.objects.Delete(ctx, photo.StoragePath); err != nil {
		return apperrors.Backend("remove photo blob", err)
	}

	if err := s.photoRepo.Delete(ctx, photo.ID); err != nil {
		log.Error().
			Err(err).
			Str("pair_id", pairID).
			Str("photo_id", photo.ID).
			Str("storage_path", photo.StoragePath).
			Msg("Photo blob removed but record delete failed")
		return apperrors.PartialDelete(photo.ID, err)
	}

	log.Info().Str("pair_id", pairID).Str("photo_id", photo.ID).Msg("Photo deleted")

	s.notify(ctx, models.NotifyPhotoDelete, photo)
	return nil
}

func (s *PhotoService) notify(ctx context.Context, kind models.NotificationKind, photo *models.Photo) {
	err := s.bus.Publish(ctx, models.Notification{Kind: kind, PairID: photo.PairID, Photo: photo})
	if err != nil {
		log.Error().Err(err).Str("pair_id", photo.PairID).Str("kind", string(kind)).Msg("Failed to publish photo change")
	}
}
