package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/models"
	"photo-frame-portal/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpDays        = 365
	minPasswordLength = 8
)

// UserService handles sign-up, login and bearer tokens
type UserService struct {
	userRepo  UserStore
	jwtSecret string
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo UserStore, jwtSecret string) *UserService {
	return &UserService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// SignUp creates an account and returns it with a fresh token
func (s *UserService) SignUp(ctx context.Context, email, password string) (*models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}
	if len(password) < minPasswordLength {
		return nil, "", apperrors.ValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperrors.Internal("failed to hash password").WithCause(err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", apperrors.Conflict("email already registered")
		}
		return nil, "", apperrors.Backend("create user", err)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperrors.Unauthorized("invalid email or password")
		}
		return nil, "", apperrors.Backend("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUser returns the user with the given ID
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Backend("get user", err)
	}
	return user, nil
}

// UpdatePushToken stores or clears the APNs device token of a user
func (s *UserService) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	if pushToken != nil && strings.TrimSpace(*pushToken) == "" {
		pushToken = nil
	}
	if err := s.userRepo.UpdatePushToken(ctx, userID, pushToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("User")
		}
		return apperrors.Backend("update push token", err)
	}
	return nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", apperrors.Internal("failed to sign token").WithCause(err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.MissingRequired("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperrors.ValidationError("email is not a valid address")
	}
	return email, nil
}
