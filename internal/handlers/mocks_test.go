package handlers

import (
	"context"
	"encoding/json"

	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*models.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *mockAuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	args := m.Called(ctx, userID, pushToken)
	return args.Error(0)
}

func (m *mockAuthService) ValidateJWT(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type mockPairManager struct {
	mock.Mock
}

func (m *mockPairManager) CreatePair(ctx context.Context, userID, displayName string) (*models.PairInfo, error) {
	args := m.Called(ctx, userID, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PairInfo), args.Error(1)
}

func (m *mockPairManager) JoinPair(ctx context.Context, userID, code, displayName string) (*models.PairInfo, error) {
	args := m.Called(ctx, userID, code, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PairInfo), args.Error(1)
}

func (m *mockPairManager) LoadPairInfo(ctx context.Context, userID string) (*models.PairInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PairInfo), args.Error(1)
}

type mockPhotoManager struct {
	mock.Mock
}

func (m *mockPhotoManager) UploadBatch(ctx context.Context, pairID, uploaderID string, files []imaging.Source) (*models.UploadReport, error) {
	args := m.Called(ctx, pairID, uploaderID, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UploadReport), args.Error(1)
}

func (m *mockPhotoManager) ListPhotos(ctx context.Context, pairID string) ([]*models.Photo, error) {
	args := m.Called(ctx, pairID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Photo), args.Error(1)
}

func (m *mockPhotoManager) DeletePhoto(ctx context.Context, pairID, photoID string) error {
	args := m.Called(ctx, pairID, photoID)
	return args.Error(0)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) Publish(ctx context.Context, pairID string, sender models.DeviceRole, eventType models.EventType, payload json.RawMessage) (*models.Event, error) {
	args := m.Called(ctx, pairID, sender, eventType, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *mockEventPublisher) Replay(ctx context.Context, pairID string, afterSeq int64) ([]*models.Event, error) {
	args := m.Called(ctx, pairID, afterSeq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Event), args.Error(1)
}
