package repository

import (
	"context"
	"errors"
	"fmt"

	"photo-frame-portal/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhotoRepository handles database operations for photos
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create creates a new photo
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, pair_id, storage_path, filename, display_order, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		photo.ID, photo.PairID, photo.StoragePath, photo.Filename,
		photo.DisplayOrder, photo.UploadedBy, photo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// GetByID retrieves a photo by ID
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `
		SELECT id, pair_id, storage_path, filename, display_order, uploaded_by, created_at
		FROM photos
		WHERE id = $1
	`
	var photo models.Photo
	err := r.db.QueryRow(ctx, query, id).Scan(
		&photo.ID, &photo.PairID, &photo.StoragePath, &photo.Filename,
		&photo.DisplayOrder, &photo.UploadedBy, &photo.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("photo %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return &photo, nil
}

// CountByPairID returns the number of photos in a pair
func (r *PhotoRepository) CountByPairID(ctx context.Context, pairID string) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE pair_id = $1`, pairID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return total, nil
}

// ListByPairID retrieves all photos of a pair in gallery order
func (r *PhotoRepository) ListByPairID(ctx context.Context, pairID string) ([]*models.Photo, error) {
	query := `
		SELECT id, pair_id, storage_path, filename, display_order, uploaded_by, created_at
		FROM photos
		WHERE pair_id = $1
		ORDER BY display_order ASC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, pairID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos: %w", err)
	}
	defer rows.Close()

	photos := make([]*models.Photo, 0)
	for rows.Next() {
		var photo models.Photo
		err := rows.Scan(
			&photo.ID, &photo.PairID, &photo.StoragePath, &photo.Filename,
			&photo.DisplayOrder, &photo.UploadedBy, &photo.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, &photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}

	return photos, nil
}

// Delete deletes a photo by ID
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("photo %w", ErrNotFound)
	}
	return nil
}
