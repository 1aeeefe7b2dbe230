package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/models"
	"photo-frame-portal/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // frames and the CLI connect without an Origin
	},
}

// WebSocketHandler serves the live change feed
type WebSocketHandler struct {
	feed         Feed
	userService  AuthService
	pairService  PairManager
	eventService EventPublisher
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	feed Feed,
	userService AuthService,
	pairService PairManager,
	eventService EventPublisher,
) *WebSocketHandler {
	return &WebSocketHandler{
		feed:         feed,
		userService:  userService,
		pairService:  pairService,
		eventService: eventService,
	}
}

// HandleWebSocket handles GET /ws?token=…&since=SEQ
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, apperrors.Unauthorized("token required"))
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, apperrors.Unauthorized("invalid token"))
		return
	}

	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		since, err = strconv.ParseInt(s, 10, 64)
		if err != nil || since < 0 {
			respondError(w, apperrors.ValidationError("since must be a non-negative integer"))
			return
		}
	}

	info, err := h.pairService.LoadPairInfo(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	pairID := info.Pair.ID
	role := info.Member.DeviceRole

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before replaying so nothing published in between is lost;
	// clients drop replayed duplicates by seq
	sub, err := h.feed.Subscribe(ctx, pairID, role)
	if err != nil {
		log.Error().Err(err).Str("pair_id", pairID).Msg("Failed to subscribe to live feed")
		h.writeFrame(conn, models.WSMessage{Type: models.WSError, Code: string(apperrors.ErrCodeBackend), Message: "live feed unavailable"})
		return
	}
	defer func() {
		h.feed.Unsubscribe(sub)
		// a second socket for the same role keeps the device online
		if !h.feed.Online(pairID, role) {
			h.announce(context.Background(), pairID, role, false)
		}
	}()

	if err := h.writeFrame(conn, statusFrame(pairID, role, h.feed.Online(pairID, role.Peer()))); err != nil {
		return
	}
	h.announce(ctx, pairID, role, true)

	if since > 0 {
		if err := h.replay(ctx, conn, pairID, since); err != nil {
			log.Warn().Err(err).Str("pair_id", pairID).Int64("since", since).Msg("Failed to replay events")
		}
	}

	log.Info().
		Str("user_id", userID).
		Str("pair_id", pairID).
		Str("role", string(role)).
		Msg("WebSocket connection established")

	outbound := make(chan models.WSMessage, 8)
	go h.readLoop(ctx, cancel, conn, pairID, role, outbound)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case n := <-sub.C:
			msg := models.WSMessage{Type: models.WSNotification, Notification: &n}
			if n.Kind == models.NotifyPresence {
				if n.Role == role {
					continue
				}
				msg = statusFrame(pairID, role, n.Online)
			}
			if err := h.writeFrame(conn, msg); err != nil {
				return
			}
		case msg := <-outbound:
			if err := h.writeFrame(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// announce tells the other device's sockets that role came online or went away
func (h *WebSocketHandler) announce(ctx context.Context, pairID string, role models.DeviceRole, online bool) {
	n := models.Notification{Kind: models.NotifyPresence, PairID: pairID, Role: role, Online: online}
	if err := h.feed.Publish(ctx, n); err != nil {
		log.Warn().Err(err).Str("pair_id", pairID).Str("role", string(role)).Msg("Failed to announce presence")
	}
}

func statusFrame(pairID string, role models.DeviceRole, partnerOnline bool) models.WSMessage {
	return models.WSMessage{
		Type:          models.WSPairStatus,
		PairID:        pairID,
		Role:          role,
		PartnerOnline: &partnerOnline,
	}
}

// replay sends every stored event after since, one page at a time, until a
// short page shows the backlog is drained
func (h *WebSocketHandler) replay(ctx context.Context, conn *websocket.Conn, pairID string, since int64) error {
	for {
		events, err := h.eventService.Replay(ctx, pairID, since)
		if err != nil {
			return err
		}
		for _, e := range events {
			n := models.Notification{Kind: models.NotifyEvent, PairID: pairID, Event: e}
			if err := h.writeFrame(conn, models.WSMessage{Type: models.WSNotification, Notification: &n}); err != nil {
				return err
			}
			since = e.Seq
		}
		if len(events) < services.ReplayLimit {
			return nil
		}
	}
}

// readLoop handles inbound frames until the connection fails. It is the only
// reader of conn; all writes stay on the HandleWebSocket goroutine.
func (h *WebSocketHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, pairID string, role models.DeviceRole, outbound chan<- models.WSMessage) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("pair_id", pairID).Msg("WebSocket error")
			}
			return
		}

		var msg models.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.queue(ctx, outbound, errorFrame(apperrors.ValidationError("Invalid message format")))
			continue
		}

		switch msg.Type {
		case models.WSPublish:
			if _, err := h.eventService.Publish(ctx, pairID, role, msg.EventType, msg.Payload); err != nil {
				log.Warn().Err(err).Str("pair_id", pairID).Str("event_type", string(msg.EventType)).Msg("Rejected published event")
				h.queue(ctx, outbound, errorFrame(err))
			}
		default:
			h.queue(ctx, outbound, errorFrame(apperrors.ValidationError("Unknown message type")))
		}
	}
}

func (h *WebSocketHandler) queue(ctx context.Context, outbound chan<- models.WSMessage, msg models.WSMessage) {
	select {
	case outbound <- msg:
	case <-ctx.Done():
	}
}

func (h *WebSocketHandler) writeFrame(conn *websocket.Conn, msg models.WSMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write WebSocket frame")
		return err
	}
	return nil
}

func errorFrame(err error) models.WSMessage {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal("An unexpected error occurred")
	}
	return models.WSMessage{Type: models.WSError, Code: string(appErr.Code), Message: appErr.Message}
}
