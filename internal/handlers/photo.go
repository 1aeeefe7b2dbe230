package handlers

import (
	"errors"
	"io"
	"net/http"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	// uploadField is the multipart field carrying the photos
	uploadField = "files"
	// multipartMemory is how much of a multipart body is buffered in memory
	multipartMemory = 32 << 20
)

// PhotoHandler handles photo-related HTTP requests
type PhotoHandler struct {
	photoService   PhotoManager
	maxUploadBytes int64
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService PhotoManager, maxUploadBytes int64) *PhotoHandler {
	return &PhotoHandler{
		photoService:   photoService,
		maxUploadBytes: maxUploadBytes,
	}
}

// GetPhotos handles GET /api/v1/photos
func (h *PhotoHandler) GetPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member := middleware.GetMember(ctx)

	photos, err := h.photoService.ListPhotos(ctx, member.PairID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"photos": photos,
		"total":  len(photos),
	})
}

// UploadPhotos handles POST /api/v1/photos. The status is 201 when every file
// was stored, 207 when only some were and 422 when none were.
func (h *PhotoHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member := middleware.GetMember(ctx)

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, apperrors.ValidationError("upload exceeds the size limit"))
			return
		}
		respondError(w, apperrors.ValidationError("expected a multipart form").WithCause(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		respondError(w, apperrors.MissingRequired(uploadField))
		return
	}

	files := make([]imaging.Source, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(w, apperrors.ValidationError("could not read "+fh.Filename).WithCause(err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, apperrors.ValidationError("could not read "+fh.Filename).WithCause(err))
			return
		}
		files = append(files, imaging.Source{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	report, err := h.photoService.UploadBatch(ctx, member.PairID, member.UserID, files)
	if err != nil {
		respondError(w, err)
		return
	}

	status := http.StatusCreated
	switch {
	case report.Succeeded == 0:
		status = http.StatusUnprocessableEntity
	case report.Partial():
		partial := apperrors.PartialBatch(report.Succeeded, report.Total).WithDetails(report.Failures)
		status = apperrors.HTTPStatus(partial.Code)
		log.Warn().
			Err(partial).
			Str("pair_id", member.PairID).
			Int("failed", len(report.Failures)).
			Msg("Upload partially failed")
	}

	log.Info().
		Str("pair_id", member.PairID).
		Str("user_id", member.UserID).
		Int("succeeded", report.Succeeded).
		Int("total", report.Total).
		Msg("Upload finished")

	respondJSON(w, status, report)
}

// DeletePhoto handles DELETE /api/v1/photos/{photo_id}
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member := middleware.GetMember(ctx)

	photoID := chi.URLParam(r, "photo_id")
	if photoID == "" {
		respondError(w, apperrors.MissingRequired("photo_id"))
		return
	}

	if err := h.photoService.DeletePhoto(ctx, member.PairID, photoID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
