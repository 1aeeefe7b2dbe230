package handlers

import (
	"errors"
	"net/http"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/middleware"
	"photo-frame-portal/internal/models"

	"github.com/rs/zerolog/log"
)

// UserHandler handles sign-up, login and account requests
type UserHandler struct {
	userService AuthService
	pairService PairManager
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService AuthService, pairService PairManager) *UserHandler {
	return &UserHandler{
		userService: userService,
		pairService: pairService,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by sign-up and login
type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// MeResponse is the session-restore view of the caller
type MeResponse struct {
	User         *models.User     `json:"user"`
	Pair         *models.PairInfo `json:"pair,omitempty"`
	NeedsPairing bool             `json:"needs_pairing"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, token, err := h.userService.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User signed up")
	respondJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	respondJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := MeResponse{User: user}
	info, err := h.pairService.LoadPairInfo(ctx, userID)
	switch {
	case err == nil:
		resp.Pair = info
	case errors.Is(err, apperrors.ErrNeedsPairing):
		resp.NeedsPairing = true
	default:
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

type pushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req pushTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := h.userService.UpdatePushToken(ctx, userID, req.PushToken); err != nil {
		respondError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Bool("cleared", req.PushToken == nil).Msg("Push token updated")
	w.WriteHeader(http.StatusNoContent)
}
