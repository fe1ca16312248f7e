package repository

import (
	"context"
	"fmt"

	"github.com/daleapp/dale-backend/pkg/db"
)

// AdminRepository holds the maintenance operations used by cmd/cleanup.
// These bypass the marketplace lifecycle rules on purpose: they reset
// seeded data, they are not user-facing.
type AdminRepository struct {
	db db.Querier
}

// NewAdminRepository creates a new admin repository.
func NewAdminRepository(q db.Querier) *AdminRepository {
	return &AdminRepository{db: q}
}

// PurgeTrips deletes every booking and trip. Bookings go first to satisfy
// the foreign key. Returns the number of trips removed.
func (r *AdminRepository) PurgeTrips(ctx context.Context) (int64, error) {
	if _, err := r.db.Exec(ctx, `DELETE FROM bookings`); err != nil {
		return 0, fmt.Errorf("purge bookings: %w", err)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM trips`)
	if err != nil {
		return 0, fmt.Errorf("purge trips: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteProfile removes a single profile by identifier.
func (r *AdminRepository) DeleteProfile(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	return nil
}
