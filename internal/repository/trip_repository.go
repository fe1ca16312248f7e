// Package repository provides database access for the Dale marketplace.
//
// BookingRepository handles the transactional seat operations with
// pessimistic locking (SELECT ... FOR UPDATE) to prevent race conditions;
// TripRepository owns trip persistence, search and the cached search path.
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/pkg/db"
)

// TripRepository provides trip persistence and search.
type TripRepository struct {
	db    db.Querier
	redis *redis.Client // nil disables the search cache
}

// NewTripRepository creates a trip repository. The redis client may be nil,
// in which case every search goes straight to Postgres.
func NewTripRepository(q db.Querier, rdb *redis.Client) *TripRepository {
	return &TripRepository{db: q, redis: rdb}
}

const tripColumns = `t.id, t.driver_id, t.origin, t.destination, t.departure_at,
	       t.seats_total, t.available_seats, t.price_per_seat, t.status,
	       t.vehicle_details, t.notes, t.created_at`

// SearchParams is the repository-level query shape. The service layer
// resolves calendar-day filters into the [From, To) departure window.
type SearchParams struct {
	Origin      string
	Destination string
	From        *time.Time
	To          *time.Time
	Passengers  int
	SortBy      model.SortKey
}

// ─── Search cache ───────────────────────────────────────────

const (
	searchCachePrefix  = "trips:search:"
	searchCacheVersion = "trips:ver"
	searchCacheTTL     = 30 * time.Second
)

// cacheKey derives a stable key from the search params, scoped by the
// trips version counter so any mutation invalidates all cached pages.
func (r *TripRepository) cacheKey(ctx context.Context, p SearchParams) string {
	ver, err := r.redis.Get(ctx, searchCacheVersion).Result()
	if err != nil {
		ver = "0"
	}
	raw := fmt.Sprintf("%s|%s|%v|%v|%d|%s", p.Origin, p.Destination, p.From, p.To, p.Passengers, p.SortBy)
	sum := sha256.Sum256([]byte(raw))
	return searchCachePrefix + ver + ":" + hex.EncodeToString(sum[:8])
}

// BumpSearchVersion invalidates all cached search results.
// Fire-and-forget: cache failures never fail the mutation that caused them.
func (r *TripRepository) BumpSearchVersion(ctx context.Context) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Incr(ctx, searchCacheVersion).Err()
}

// Search returns scheduled trips matching the composed filters, joined with
// the driver profile slice, ordered by the requested sort key with a stable
// id tie-break.
//
// Strategy:
//  1. Try the Redis cache first (fast path).
//  2. On miss, run the composed query against Postgres and cache the result
//     for a short TTL.
func (r *TripRepository) Search(ctx context.Context, p SearchParams) ([]model.TripWithDriver, error) {
	var key string
	if r.redis != nil {
		key = r.cacheKey(ctx, p)
		if raw, err := r.redis.Get(ctx, key).Bytes(); err == nil {
			var cached []model.TripWithDriver
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	trips, err := r.searchFromDB(ctx, p)
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if raw, err := json.Marshal(trips); err == nil {
			_ = r.redis.Set(ctx, key, raw, searchCacheTTL).Err()
		}
	}
	return trips, nil
}

func (r *TripRepository) searchFromDB(ctx context.Context, p SearchParams) ([]model.TripWithDriver, error) {
	if p.Passengers < 1 {
		p.Passengers = 1
	}

	var (
		conds = []string{"t.status = 'scheduled'", "t.available_seats >= $1"}
		args  = []any{p.Passengers}
	)
	if p.Origin != "" {
		args = append(args, p.Origin)
		conds = append(conds, fmt.Sprintf("t.origin ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if p.Destination != "" {
		args = append(args, p.Destination)
		conds = append(conds, fmt.Sprintf("t.destination ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if p.From != nil {
		args = append(args, *p.From)
		conds = append(conds, fmt.Sprintf("t.departure_at >= $%d", len(args)))
	}
	if p.To != nil {
		args = append(args, *p.To)
		conds = append(conds, fmt.Sprintf("t.departure_at < $%d", len(args)))
	}

	sortCol := "t.departure_at"
	if p.SortBy == model.SortByPrice {
		sortCol = "t.price_per_seat"
	}

	query := fmt.Sprintf(`
		SELECT %s,
		       p.id, p.full_name, p.photo_url
		FROM trips t
		JOIN profiles p ON p.id = t.driver_id
		WHERE %s
		ORDER BY %s ASC, t.id ASC`,
		tripColumns, strings.Join(conds, " AND "), sortCol)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search trips: %w", err)
	}
	defer rows.Close()

	var results []model.TripWithDriver
	for rows.Next() {
		var tw model.TripWithDriver
		if err := scanTripWithDriver(rows, &tw); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		results = append(results, tw)
	}
	return results, rows.Err()
}

func scanTripWithDriver(row pgx.Row, tw *model.TripWithDriver) error {
	return row.Scan(
		&tw.ID, &tw.DriverID, &tw.Origin, &tw.Destination, &tw.DepartureAt,
		&tw.SeatsTotal, &tw.AvailableSeats, &tw.PricePerSeat, &tw.Status,
		&tw.VehicleDetails, &tw.Notes, &tw.CreatedAt,
		&tw.Driver.ID, &tw.Driver.FullName, &tw.Driver.PhotoURL,
	)
}

// ─── Writes ─────────────────────────────────────────────────

// Insert persists a new trip. available_seats starts at seats_total and the
// status is always scheduled; both are fixed here, not by the caller.
func (r *TripRepository) Insert(ctx context.Context, t model.Trip) (model.Trip, error) {
	t.Status = model.TripScheduled
	t.AvailableSeats = t.SeatsTotal

	row := r.db.QueryRow(ctx, `
		INSERT INTO trips (id, driver_id, origin, destination, departure_at,
		                   seats_total, available_seats, price_per_seat, status,
		                   vehicle_details, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, t.ID, t.DriverID, t.Origin, t.Destination, t.DepartureAt,
		t.SeatsTotal, t.AvailableSeats, t.PricePerSeat, t.Status,
		t.VehicleDetails, t.Notes)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return model.Trip{}, fmt.Errorf("insert trip: %w", err)
	}

	r.BumpSearchVersion(ctx)
	return t, nil
}

// GetWithDriver fetches a single trip by ID joined with its driver profile.
func (r *TripRepository) GetWithDriver(ctx context.Context, id string) (*model.TripWithDriver, error) {
	query := fmt.Sprintf(`
		SELECT %s,
		       p.id, p.full_name, p.photo_url
		FROM trips t
		JOIN profiles p ON p.id = t.driver_id
		WHERE t.id = $1`, tripColumns)

	var tw model.TripWithDriver
	if err := scanTripWithDriver(r.db.QueryRow(ctx, query, id), &tw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "trip", Err: err}
		}
		return nil, fmt.Errorf("get trip %s: %w", id, err)
	}
	return &tw, nil
}

// ListByDriver returns all trips posted by a driver, newest departure first.
func (r *TripRepository) ListByDriver(ctx context.Context, driverID string) ([]model.Trip, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM trips t
		WHERE t.driver_id = $1
		ORDER BY t.departure_at DESC, t.id ASC`, tripColumns)

	rows, err := r.db.Query(ctx, query, driverID)
	if err != nil {
		return nil, fmt.Errorf("list trips for driver %s: %w", driverID, err)
	}
	defer rows.Close()

	var trips []model.Trip
	for rows.Next() {
		var t model.Trip
		if err := rows.Scan(
			&t.ID, &t.DriverID, &t.Origin, &t.Destination, &t.DepartureAt,
			&t.SeatsTotal, &t.AvailableSeats, &t.PricePerSeat, &t.Status,
			&t.VehicleDetails, &t.Notes, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// CancelTripResult reports the outcome of a trip cancellation.
type CancelTripResult struct {
	Trip              model.Trip `json:"trip"`
	BookingsCancelled int64      `json:"bookings_cancelled"`
}

// CancelTrip transitions a scheduled trip to cancelled and cascade-cancels
// its active bookings inside one transaction. Seats are restored to
// seats_total so the conservation invariant holds on the final row.
//
// Preconditions checked under the row lock:
//   - the trip exists (NotFoundError)
//   - callerID is the trip's driver (AuthError)
//   - the trip is still scheduled (StateError)
func (r *TripRepository) CancelTrip(ctx context.Context, tripID, callerID string) (*CancelTripResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("cancel trip: begin tx: %w", err)
	}
	// Defer rollback — no-op if tx was already committed.
	defer tx.Rollback(ctx)

	var t model.Trip
	err = tx.QueryRow(txCtx, `
		SELECT id, driver_id, origin, destination, departure_at,
		       seats_total, available_seats, price_per_seat, status,
		       vehicle_details, notes, created_at
		FROM trips
		WHERE id = $1
		FOR UPDATE
	`, tripID).Scan(
		&t.ID, &t.DriverID, &t.Origin, &t.Destination, &t.DepartureAt,
		&t.SeatsTotal, &t.AvailableSeats, &t.PricePerSeat, &t.Status,
		&t.VehicleDetails, &t.Notes, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "trip", Err: err}
		}
		return nil, fmt.Errorf("cancel trip: lock trip %s: %w", tripID, err)
	}

	if t.DriverID != callerID {
		return nil, apperr.AuthError{Msg: "only the trip driver may cancel the trip"}
	}
	if t.Status != model.TripScheduled {
		return nil, apperr.StateError{Resource: "trip", Current: string(t.Status)}
	}

	tag, err := tx.Exec(txCtx, `
		UPDATE bookings
		SET status = 'cancelled'
		WHERE trip_id = $1 AND status IN ('pending', 'confirmed')
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("cancel trip: cascade bookings: %w", err)
	}

	_, err = tx.Exec(txCtx, `
		UPDATE trips
		SET status = 'cancelled', available_seats = seats_total
		WHERE id = $1
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("cancel trip: update trip %s: %w", tripID, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("cancel trip: commit: %w", err)
	}

	t.Status = model.TripCancelled
	t.AvailableSeats = t.SeatsTotal

	r.BumpSearchVersion(ctx)
	return &CancelTripResult{Trip: t, BookingsCancelled: tag.RowsAffected()}, nil
}
