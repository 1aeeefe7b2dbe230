package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	tokens map[string]string
}

func (f *fakeValidator) ValidateJWT(token string) (string, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type fakeResolver struct {
	members map[string]*models.PairUser
}

func (f *fakeResolver) Membership(_ context.Context, userID string) (*models.PairUser, error) {
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return nil, apperrors.NeedsPairing()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorBody {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestAuthMiddleware(t *testing.T) {
	validator := &fakeValidator{tokens: map[string]string{"good": "user-1"}}
	var seen string
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("accepts a valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", seen)
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic good"},
		{"unknown token", "Bearer bad"},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, apperrors.ErrCodeUnauthorized, decodeError(t, rec).Code)
		})
	}
}

func TestRequirePair(t *testing.T) {
	member := &models.PairUser{ID: "m1", PairID: "pair-1", UserID: "user-1", DeviceRole: models.RoleA}
	resolver := &fakeResolver{members: map[string]*models.PairUser{"user-1": member}}

	var got *models.PairUser
	handler := RequirePair(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetMember(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("stores membership", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/photos", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "pair-1", got.PairID)
	})

	t.Run("unpaired caller needs pairing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/photos", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-2"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, apperrors.ErrCodeNeedsPairing, decodeError(t, rec).Code)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows the burst then blocks", func(t *testing.T) {
		limiter := NewRateLimiter(1, 3)
		fixed := time.Unix(1700000000, 0)
		limiter.now = func() time.Time { return fixed }

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("user-1"))
		}
		assert.False(t, limiter.Allow("user-1"))
	})

	t.Run("refills over time", func(t *testing.T) {
		limiter := NewRateLimiter(1, 1)
		now := time.Unix(1700000000, 0)
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("user-1"))
		assert.False(t, limiter.Allow("user-1"))

		now = now.Add(time.Second)
		assert.True(t, limiter.Allow("user-1"))
	})

	t.Run("tracks users separately", func(t *testing.T) {
		limiter := NewRateLimiter(1, 1)
		assert.True(t, limiter.Allow("user-a"))
		assert.True(t, limiter.Allow("user-b"))
	})

	t.Run("middleware answers 429", func(t *testing.T) {
		limiter := NewRateLimiter(0.001, 1)
		handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", nil)
			req = req.WithContext(WithUserID(req.Context(), "user-1"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			return rec
		}

		assert.Equal(t, http.StatusCreated, send().Code)
		rec := send()
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, apperrors.ErrCodeRateLimited, decodeError(t, rec).Code)
	})
}
