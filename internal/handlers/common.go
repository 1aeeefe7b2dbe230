package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"photo-frame-portal/internal/eventbus"
	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"
)

// AuthService is what the auth and account handlers need
type AuthService interface {
	SignUp(ctx context.Context, email, password string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
	ValidateJWT(token string) (string, error)
}

// PairManager is what the pairing handlers need
type PairManager interface {
	CreatePair(ctx context.Context, userID, displayName string) (*models.PairInfo, error)
	JoinPair(ctx context.Context, userID, code, displayName string) (*models.PairInfo, error)
	LoadPairInfo(ctx context.Context, userID string) (*models.PairInfo, error)
}

// PhotoManager is what the photo handlers need
type PhotoManager interface {
	UploadBatch(ctx context.Context, pairID, uploaderID string, files []imaging.Source) (*models.UploadReport, error)
	ListPhotos(ctx context.Context, pairID string) ([]*models.Photo, error)
	DeletePhoto(ctx context.Context, pairID, photoID string) error
}

// EventPublisher is what the event handlers need
type EventPublisher interface {
	Publish(ctx context.Context, pairID string, sender models.DeviceRole, eventType models.EventType, payload json.RawMessage) (*models.Event, error)
	Replay(ctx context.Context, pairID string, afterSeq int64) ([]*models.Event, error)
}

// Feed is the live change feed the WebSocket handler subscribes to
type Feed interface {
	Subscribe(ctx context.Context, pairID string, role models.DeviceRole) (*eventbus.Subscription, error)
	Unsubscribe(sub *eventbus.Subscription)
	Online(pairID string, role models.DeviceRole) bool
	Publish(ctx context.Context, n models.Notification) error
}

// respondJSON sends data as a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
