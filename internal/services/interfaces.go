package services

import (
	"context"

	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"
)

// UserStore is the persistence the auth service needs
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// PairStore is the persistence the pairing manager needs
type PairStore interface {
	CreateWithOwner(ctx context.Context, pair *models.Pair, owner *models.PairUser) error
	LookupPairIDByCode(ctx context.Context, code string) (string, error)
	AddMember(ctx context.Context, member *models.PairUser) error
	GetMembership(ctx context.Context, userID string) (*models.PairUser, *models.Pair, error)
	GetMembers(ctx context.Context, pairID string) ([]*models.PairUser, error)
	GetState(ctx context.Context, pairID string) (*models.PairState, error)
	UpdateNavState(ctx context.Context, pairID string, index int, seq int64) error
	GetPushToken(ctx context.Context, pairID string, role models.DeviceRole) (*string, error)
}

// PhotoStore is the photo metadata persistence
type PhotoStore interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	CountByPairID(ctx context.Context, pairID string) (int, error)
	ListByPairID(ctx context.Context, pairID string) ([]*models.Photo, error)
	Delete(ctx context.Context, id string) error
}

// EventStore is the append-only event log
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	ListSince(ctx context.Context, pairID string, afterSeq int64, limit int) ([]*models.Event, error)
}

// ObjectStore holds photo blobs
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}

// Processor turns an uploaded file into a frame-ready JPEG
type Processor interface {
	Process(ctx context.Context, src imaging.Source) ([]byte, error)
}

// Publisher pushes notifications onto the live feed
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Presence reports whether a device currently holds a live subscription
type Presence interface {
	Online(pairID string, role models.DeviceRole) bool
}

// Notifier delivers a push notification to a device token
type Notifier interface {
	Notify(ctx context.Context, deviceToken, alert string) error
}
