package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/pkg/db"
)

// ProfileRepository provides access to user profiles.
type ProfileRepository struct {
	db db.Querier
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(q db.Querier) *ProfileRepository {
	return &ProfileRepository{db: q}
}

const profileColumns = `id, email, full_name, photo_url, rating, total_reviews, created_at, updated_at`

// Create inserts a new profile with the given bcrypt password hash.
// A duplicate email surfaces as ConflictError.
func (r *ProfileRepository) Create(ctx context.Context, email, passwordHash, fullName string) (*model.Profile, error) {
	p := &model.Profile{Email: email, FullName: fullName}
	err := r.db.QueryRow(ctx, `
		INSERT INTO profiles (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id, rating, total_reviews, created_at, updated_at
	`, email, passwordHash, fullName).Scan(
		&p.ID, &p.Rating, &p.TotalReviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.ConflictError{Resource: "profile", Msg: "email already registered"}
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// GetByEmail fetches a profile and its password hash for credential checks.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, string, error) {
	var (
		p    model.Profile
		hash string
	)
	err := r.db.QueryRow(ctx, `
		SELECT `+profileColumns+`, password_hash
		FROM profiles
		WHERE email = $1
	`, email).Scan(
		&p.ID, &p.Email, &p.FullName, &p.PhotoURL, &p.Rating,
		&p.TotalReviews, &p.CreatedAt, &p.UpdatedAt, &hash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperr.NotFoundError{Resource: "profile", Err: err}
		}
		return nil, "", fmt.Errorf("get profile by email: %w", err)
	}
	return &p, hash, nil
}

// GetByID fetches a profile by its identifier.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = $1
	`, id).Scan(
		&p.ID, &p.Email, &p.FullName, &p.PhotoURL, &p.Rating,
		&p.TotalReviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "profile", Err: err}
		}
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &p, nil
}

// UpdateMetadata patches the mutable profile fields. Empty patch values
// leave the stored value untouched.
func (r *ProfileRepository) UpdateMetadata(ctx context.Context, id, fullName, photoURL string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRow(ctx, `
		UPDATE profiles
		SET full_name = COALESCE(NULLIF($2, ''), full_name),
		    photo_url = COALESCE(NULLIF($3, ''), photo_url),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns+`
	`, id, fullName, photoURL).Scan(
		&p.ID, &p.Email, &p.FullName, &p.PhotoURL, &p.Rating,
		&p.TotalReviews, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "profile", Err: err}
		}
		return nil, fmt.Errorf("update profile %s: %w", id, err)
	}
	return &p, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
