package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/middleware"
	"photo-frame-portal/internal/models"
)

// EventHandler handles cross-device event requests
type EventHandler struct {
	eventService EventPublisher
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService EventPublisher) *EventHandler {
	return &EventHandler{
		eventService: eventService,
	}
}

type publishRequest struct {
	EventType models.EventType `json:"event_type"`
	Payload   json.RawMessage  `json:"payload"`
}

// PublishEvent handles POST /api/v1/events. The sender is always the
// caller's own device role.
func (h *EventHandler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member := middleware.GetMember(ctx)

	var req publishRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.EventType == "" {
		respondError(w, apperrors.MissingRequired("event_type"))
		return
	}

	event, err := h.eventService.Publish(ctx, member.PairID, member.DeviceRole, req.EventType, req.Payload)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/v1/events?since=SEQ
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member := middleware.GetMember(ctx)

	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			respondError(w, apperrors.ValidationError("since must be a non-negative integer"))
			return
		}
		since = v
	}

	events, err := h.eventService.Replay(ctx, member.PairID, since)
	if err != nil {
		respondError(w, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
