package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/models"
	"photo-frame-portal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// PairCodeLength is the number of characters in a pairing code
	PairCodeLength = 6
	// PairCodeChars excludes 0/O, 1/I/L so codes survive being read aloud
	PairCodeChars = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 10
)

// PairService is the pairing manager: it creates and joins pairs and
// resolves a user's membership.
type PairService struct {
	pairRepo PairStore
	newCode  func() string
	now      func() time.Time
}

// NewPairService creates a new pair service
func NewPairService(pairRepo PairStore) *PairService {
	return &PairService{
		pairRepo: pairRepo,
		newCode:  GeneratePairCode,
		now:      time.Now,
	}
}

// GeneratePairCode returns a random pairing code
func GeneratePairCode() string {
	code := make([]byte, PairCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(PairCodeChars))))
		code[i] = PairCodeChars[n.Int64()]
	}
	return string(code)
}

// NormalizePairCode trims and upper-cases user input
func NormalizePairCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidPairCode reports whether code is well formed (already normalized)
func ValidPairCode(code string) bool {
	if len(code) != PairCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(PairCodeChars, code[i]) < 0 {
			return false
		}
	}
	return true
}

// CreatePair creates a pair with the caller as device A. Code collisions are
// retried with a fresh code.
func (s *PairService) CreatePair(ctx context.Context, userID, displayName string) (*models.PairInfo, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, apperrors.MissingRequired("display_name")
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		now := s.now()
		pair := &models.Pair{
			ID:        uuid.New().String(),
			PairCode:  s.newCode(),
			CreatedAt: now,
		}
		owner := &models.PairUser{
			ID:          uuid.New().String(),
			PairID:      pair.ID,
			UserID:      userID,
			DeviceRole:  models.RoleA,
			DisplayName: displayName,
			CreatedAt:   now,
		}

		err := s.pairRepo.CreateWithOwner(ctx, pair, owner)
		switch {
		case err == nil:
			log.Info().
				Str("user_id", userID).
				Str("pair_id", pair.ID).
				Str("pair_code", pair.PairCode).
				Msg("Pair created")
			return &models.PairInfo{
				Pair:   *pair,
				Member: *owner,
				State:  &models.PairState{PairID: pair.ID, UpdatedAt: now},
			}, nil
		case errors.Is(err, repository.ErrDuplicateCode):
			log.Warn().Int("attempt", attempt).Str("pair_code", pair.PairCode).Msg("Pair code collision, retrying")
		case errors.Is(err, repository.ErrAlreadyPaired):
			return nil, apperrors.Conflict("user already belongs to a pair")
		default:
			return nil, apperrors.Backend("create pair", err)
		}
	}

	return nil, apperrors.Backend("create pair",
		fmt.Errorf("no unique pair code after %d attempts", maxCodeAttempts))
}

// JoinPair adds the caller to the pair behind code as device B
func (s *PairService) JoinPair(ctx context.Context, userID, code, displayName string) (*models.PairInfo, error) {
	code = NormalizePairCode(code)
	displayName = strings.TrimSpace(displayName)
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}
	if displayName == "" {
		return nil, apperrors.MissingRequired("display_name")
	}
	if !ValidPairCode(code) {
		return nil, apperrors.NotFound("Pair code")
	}

	pairID, err := s.pairRepo.LookupPairIDByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Pair code")
		}
		return nil, apperrors.Backend("look up pair code", err)
	}

	member := &models.PairUser{
		ID:          uuid.New().String(),
		PairID:      pairID,
		UserID:      userID,
		DeviceRole:  models.RoleB,
		DisplayName: displayName,
		CreatedAt:   s.now(),
	}
	if err := s.pairRepo.AddMember(ctx, member); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyPaired):
			return nil, apperrors.Conflict("user already belongs to a pair")
		case errors.Is(err, repository.ErrRoleTaken):
			return nil, apperrors.Conflict("pair already has two members")
		default:
			return nil, apperrors.Backend("join pair", err)
		}
	}

	log.Info().
		Str("user_id", userID).
		Str("pair_id", pairID).
		Msg("Pair joined")

	return s.LoadPairInfo(ctx, userID)
}

// Membership returns the caller's member row, or NEEDS_PAIRING
func (s *PairService) Membership(ctx context.Context, userID string) (*models.PairUser, error) {
	member, _, err := s.pairRepo.GetMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NeedsPairing()
		}
		return nil, apperrors.Backend("get membership", err)
	}
	return member, nil
}

// LoadPairInfo returns the caller's pair, role, partner and navigation state,
// or NEEDS_PAIRING when the caller has not created or joined a pair yet.
func (s *PairService) LoadPairInfo(ctx context.Context, userID string) (*models.PairInfo, error) {
	member, pair, err := s.pairRepo.GetMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NeedsPairing()
		}
		return nil, apperrors.Backend("get membership", err)
	}

	info := &models.PairInfo{Pair: *pair, Member: *member}

	members, err := s.pairRepo.GetMembers(ctx, pair.ID)
	if err != nil {
		return nil, apperrors.Backend("get pair members", err)
	}
	for _, m := range members {
		if m.UserID != userID {
			info.PartnerName = m.DisplayName
		}
	}

	state, err := s.pairRepo.GetState(ctx, pair.ID)
	switch {
	case err == nil:
		info.State = state
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, apperrors.Backend("get pair state", err)
	}

	return info, nil
}
