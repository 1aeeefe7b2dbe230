package repository

import (
	"context"
	"errors"
	"fmt"

	"photo-frame-portal/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PairRepository handles database operations for pairs, their members and shared state
type PairRepository struct {
	db *pgxpool.Pool
}

// NewPairRepository creates a new pair repository
func NewPairRepository(db *pgxpool.Pool) *PairRepository {
	return &PairRepository{db: db}
}

// CreateWithOwner inserts the pair, its role-A member and the initial pair state
// in one transaction, so a failed member insert never leaves an orphaned pair.
func (r *PairRepository) CreateWithOwner(ctx context.Context, pair *models.Pair, owner *models.PairUser) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO pairs (id, pair_code, created_at)
		VALUES ($1, $2, $3)
	`, pair.ID, pair.PairCode, pair.CreatedAt); err != nil {
		return fmt.Errorf("failed to create pair: %w", translate(err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pair_users (id, pair_id, user_id, device_role, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, owner.ID, owner.PairID, owner.UserID, owner.DeviceRole, owner.DisplayName, owner.CreatedAt); err != nil {
		return fmt.Errorf("failed to add pair owner: %w", translate(err))
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pair_state (pair_id, updated_at) VALUES ($1, $2)
	`, pair.ID, pair.CreatedAt); err != nil {
		return fmt.Errorf("failed to create pair state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit pair: %w", err)
	}
	return nil
}

// LookupPairIDByCode resolves a pairing code without any membership check.
// Only the join flow may call it: the joiner is not a member yet.
func (r *PairRepository) LookupPairIDByCode(ctx context.Context, code string) (string, error) {
	var pairID string
	err := r.db.QueryRow(ctx, `SELECT id FROM pairs WHERE pair_code = $1`, code).Scan(&pairID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("pair code %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to look up pair code: %w", err)
	}
	return pairID, nil
}

// AddMember inserts a pair member
func (r *PairRepository) AddMember(ctx context.Context, member *models.PairUser) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pair_users (id, pair_id, user_id, device_role, display_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, member.ID, member.PairID, member.UserID, member.DeviceRole, member.DisplayName, member.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add pair member: %w", translate(err))
	}
	return nil
}

// GetMembership retrieves the pair a user belongs to together with their member row
func (r *PairRepository) GetMembership(ctx context.Context, userID string) (*models.PairUser, *models.Pair, error) {
	query := `
		SELECT pu.id, pu.pair_id, pu.user_id, pu.device_role, pu.display_name, pu.created_at,
		       p.id, p.pair_code, p.created_at
		FROM pair_users pu
		JOIN pairs p ON p.id = pu.pair_id
		WHERE pu.user_id = $1
	`
	var member models.PairUser
	var pair models.Pair
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&member.ID, &member.PairID, &member.UserID, &member.DeviceRole, &member.DisplayName, &member.CreatedAt,
		&pair.ID, &pair.PairCode, &pair.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("membership %w", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &member, &pair, nil
}

// GetMembers retrieves all members of a pair ordered by role
func (r *PairRepository) GetMembers(ctx context.Context, pairID string) ([]*models.PairUser, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, pair_id, user_id, device_role, display_name, created_at
		FROM pair_users
		WHERE pair_id = $1
		ORDER BY device_role
	`, pairID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pair members: %w", err)
	}
	defer rows.Close()

	var members []*models.PairUser
	for rows.Next() {
		var m models.PairUser
		if err := rows.Scan(&m.ID, &m.PairID, &m.UserID, &m.DeviceRole, &m.DisplayName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pair member: %w", err)
		}
		members = append(members, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pair members: %w", err)
	}
	return members, nil
}

// GetState retrieves the shared navigation state of a pair
func (r *PairRepository) GetState(ctx context.Context, pairID string) (*models.PairState, error) {
	var st models.PairState
	err := r.db.QueryRow(ctx, `
		SELECT pair_id, current_index, nav_seq, updated_at
		FROM pair_state
		WHERE pair_id = $1
	`, pairID).Scan(&st.PairID, &st.CurrentIndex, &st.NavSeq, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pair state %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pair state: %w", err)
	}
	return &st, nil
}

// UpdateNavState records a navigation event. Older sequence numbers never
// overwrite newer ones.
func (r *PairRepository) UpdateNavState(ctx context.Context, pairID string, index int, seq int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pair_state (pair_id, current_index, nav_seq, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (pair_id) DO UPDATE
		SET current_index = EXCLUDED.current_index,
		    nav_seq = EXCLUDED.nav_seq,
		    updated_at = EXCLUDED.updated_at
		WHERE pair_state.nav_seq < EXCLUDED.nav_seq
	`, pairID, index, seq)
	if err != nil {
		return fmt.Errorf("failed to update pair state: %w", err)
	}
	return nil
}

// GetPushToken returns the push token of the member holding role in the pair, if any
func (r *PairRepository) GetPushToken(ctx context.Context, pairID string, role models.DeviceRole) (*string, error) {
	var token *string
	err := r.db.QueryRow(ctx, `
		SELECT u.push_token
		FROM pair_users pu
		JOIN users u ON u.id = pu.user_id
		WHERE pu.pair_id = $1 AND pu.device_role = $2
	`, pairID, role).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get push token: %w", err)
	}
	return token, nil
}
