package handlers

import (
	"net/http"

	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/middleware"
)

// PairHandler handles pairing requests
type PairHandler struct {
	pairService PairManager
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairService PairManager) *PairHandler {
	return &PairHandler{
		pairService: pairService,
	}
}

type createPairRequest struct {
	DisplayName string `json:"display_name"`
}

type joinPairRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// CreatePair handles POST /api/v1/pairs
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req createPairRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	info, err := h.pairService.CreatePair(ctx, userID, req.DisplayName)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

// JoinPair handles POST /api/v1/pairs/join
func (h *PairHandler) JoinPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req joinPairRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	info, err := h.pairService.JoinPair(ctx, userID, req.Code, req.DisplayName)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// GetCurrentPair handles GET /api/v1/pairs/current
func (h *PairHandler) GetCurrentPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	info, err := h.pairService.LoadPairInfo(ctx, middleware.GetUserID(ctx))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}
