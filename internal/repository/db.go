package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Repository errors callers match with errors.Is
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateCode  = errors.New("pair code already in use")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrAlreadyPaired  = errors.New("user already belongs to a pair")
	ErrRoleTaken      = errors.New("device role already taken in pair")
)

const uniqueViolation = "23505"

// constraintErrors maps unique constraints from schema.sql to repository errors
var constraintErrors = map[string]error{
	"pairs_pair_code_key":      ErrDuplicateCode,
	"users_email_key":          ErrDuplicateEmail,
	"pair_users_user_id_key":   ErrAlreadyPaired,
	"pair_users_pair_role_key": ErrRoleTaken,
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// translate turns known unique violations into repository errors
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if mapped, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %s", mapped, pgErr.Detail)
		}
	}
	return err
}
