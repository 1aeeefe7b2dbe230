package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/httputil"
	"photo-frame-portal/internal/models"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	memberKey contextKey = "member"
)

// TokenValidator resolves a bearer token to a user ID
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// MembershipResolver resolves a user to their pair membership
type MembershipResolver interface {
	Membership(ctx context.Context, userID string) (*models.PairUser, error)
}

// AuthMiddleware creates a middleware for JWT authentication
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteError(w, apperrors.Unauthorized("Authorization header required"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.WriteError(w, apperrors.Unauthorized("Invalid authorization header format"))
				return
			}

			userID, err := validator.ValidateJWT(parts[1])
			if err != nil {
				httputil.WriteError(w, apperrors.Unauthorized("Invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequirePair rejects callers without a pair with NEEDS_PAIRING and stores
// their membership in the request context.
func RequirePair(resolver MembershipResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member, err := resolver.Membership(r.Context(), GetUserID(r.Context()))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithMember(r.Context(), member)))
		})
	}
}

// WithUserID returns a context carrying the authenticated user ID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// WithMember returns a context carrying the caller's pair membership
func WithMember(ctx context.Context, member *models.PairUser) context.Context {
	return context.WithValue(ctx, memberKey, member)
}

// GetMember extracts the pair membership from context
func GetMember(ctx context.Context) *models.PairUser {
	member, _ := ctx.Value(memberKey).(*models.PairUser)
	return member
}
