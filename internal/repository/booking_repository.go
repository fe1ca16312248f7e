package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/pkg/db"
)

// DefaultTxTimeout is the maximum duration for a seat-mutating transaction,
// including lock wait time.
const DefaultTxTimeout = 5 * time.Second

// BookingRepository handles transactional booking with row-level locking.
type BookingRepository struct {
	db    db.Querier
	trips *TripRepository
}

// NewBookingRepository creates a new booking repository. The trip repository
// is used only to invalidate the search cache after seat mutations.
func NewBookingRepository(q db.Querier, trips *TripRepository) *BookingRepository {
	return &BookingRepository{db: q, trips: trips}
}

// BookingResult contains the outcome of a successful booking transaction.
// RemainingSeats reflects the trip row after the atomic decrement; callers
// must render this value, never a locally computed guess.
type BookingResult struct {
	Booking        model.Booking `json:"booking"`
	RemainingSeats int           `json:"remaining_seats"`
}

// ─── The Core Transactional Booking ─────────────────────────

// Create books seats on a trip in a single serialized transaction.
//
// Concurrency strategy: PESSIMISTIC LOCKING
//
//	Scenario: two passengers request the last seats at the same millisecond.
//
//	T1: BEGIN → SELECT trip FOR UPDATE → (trip row LOCKED)
//	T2: BEGIN → SELECT trip FOR UPDATE → (BLOCKS, waiting for T1's lock)
//	T1: seats OK → UPDATE trips → INSERT booking → COMMIT → (lock released)
//	T2: (unblocked) → re-reads trip → seats gone → ROLLBACK → ConflictError
//
// The seat decrement and the booking insert commit as one unit; if either
// fails, neither is visible. The decrement additionally carries an
// available_seats >= n guard so the row can never go negative.
//
// total_price is computed here from the locked trip row. Caller-supplied
// totals are never consulted.
func (r *BookingRepository) Create(
	ctx context.Context,
	passengerID, tripID string,
	seats int,
	bookingID string,
) (*BookingResult, error) {

	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("booking: begin tx: %w", err)
	}
	// Defer rollback — no-op if tx was already committed.
	defer tx.Rollback(ctx)

	// ── Step 1: LOCK the trip row ───────────────────────
	var (
		driverID     string
		tripStatus   model.TripStatus
		available    int
		pricePerSeat float64
	)
	err = tx.QueryRow(txCtx, `
		SELECT driver_id, status, available_seats, price_per_seat
		FROM trips
		WHERE id = $1
		FOR UPDATE
	`, tripID).Scan(&driverID, &tripStatus, &available, &pricePerSeat)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "trip", Err: err}
		}
		return nil, fmt.Errorf("booking: lock trip %s: %w", tripID, err)
	}

	// ── Step 2: Validate business rules under the lock ──
	if tripStatus != model.TripScheduled {
		return nil, apperr.StateError{Resource: "trip", Current: string(tripStatus)}
	}
	if passengerID == driverID {
		return nil, apperr.ValidationError{Field: "passenger_id", Msg: "a driver cannot book their own trip"}
	}
	if seats > available {
		// The "last seat taken" scenario.
		// Transaction rolls back automatically via defer.
		return nil, apperr.ConflictError{
			Resource: "trip",
			Msg:      fmt.Sprintf("%d seats remaining, %d requested", available, seats),
		}
	}

	// ── Step 3: Atomic decrement ────────────────────────
	var remaining int
	err = tx.QueryRow(txCtx, `
		UPDATE trips
		SET available_seats = available_seats - $2
		WHERE id = $1 AND status = 'scheduled' AND available_seats >= $2
		RETURNING available_seats
	`, tripID, seats).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ConflictError{Resource: "trip", Msg: "seat availability changed"}
		}
		return nil, fmt.Errorf("booking: decrement trip %s: %w", tripID, err)
	}

	// ── Step 4: Insert the booking ──────────────────────
	booking := model.Booking{
		ID:          bookingID,
		TripID:      tripID,
		PassengerID: passengerID,
		SeatsBooked: seats,
		TotalPrice:  float64(seats) * pricePerSeat,
		Status:      model.BookingPending,
	}
	err = tx.QueryRow(txCtx, `
		INSERT INTO bookings (id, trip_id, passenger_id, seats_booked, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, booking.ID, booking.TripID, booking.PassengerID,
		booking.SeatsBooked, booking.TotalPrice, booking.Status).Scan(&booking.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("booking: insert: %w", err)
	}

	// ── Step 5: COMMIT ──────────────────────────────────
	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("booking: commit: %w", err)
	}

	r.trips.BumpSearchVersion(ctx)
	return &BookingResult{Booking: booking, RemainingSeats: remaining}, nil
}

// ─── Confirm ────────────────────────────────────────────────

// Confirm transitions a pending booking to confirmed. Only the owning
// trip's driver may confirm. Confirming an already-confirmed booking is a
// no-op returning the current state.
func (r *BookingRepository) Confirm(ctx context.Context, bookingID, callerID string) (*model.Booking, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("confirm: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b, driverID, _, err := lockBookingWithTrip(txCtx, tx, bookingID)
	if err != nil {
		return nil, err
	}

	if callerID != driverID {
		return nil, apperr.AuthError{Msg: "only the trip driver may confirm a booking"}
	}

	switch b.Status {
	case model.BookingConfirmed:
		// Idempotent: already confirmed.
		if err := tx.Commit(txCtx); err != nil {
			return nil, fmt.Errorf("confirm: commit: %w", err)
		}
		return b, nil
	case model.BookingCancelled:
		return nil, apperr.StateError{Resource: "booking", Current: string(b.Status)}
	}

	_, err = tx.Exec(txCtx, `UPDATE bookings SET status = 'confirmed' WHERE id = $1`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("confirm: update booking %s: %w", bookingID, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("confirm: commit: %w", err)
	}

	b.Status = model.BookingConfirmed
	return b, nil
}

// ─── Cancel ─────────────────────────────────────────────────

// CancelResult contains the outcome of a booking cancellation.
type CancelResult struct {
	Booking       model.Booking `json:"booking"`
	SeatsRestored bool          `json:"seats_restored"`
	// AlreadyCancelled marks the idempotent no-op path.
	AlreadyCancelled bool `json:"already_cancelled,omitempty"`
}

// Cancel cancels a booking. Uses pessimistic locking for concurrency safety.
//
// State transitions:
//   - PENDING, CONFIRMED → CANCELLED: seats restored to the trip in the same
//     transaction, unless the trip has left the scheduled state (restoring
//     onto a cancelled trip is a no-op).
//   - CANCELLED: idempotent no-op returning the current state; seats are
//     never restored twice.
//
// Authorization: callerID must be the booking's passenger or the owning
// trip's driver.
func (r *BookingRepository) Cancel(ctx context.Context, bookingID, callerID string) (*CancelResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("cancel: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b, driverID, tripStatus, err := lockBookingWithTrip(txCtx, tx, bookingID)
	if err != nil {
		return nil, err
	}

	if callerID != b.PassengerID && callerID != driverID {
		return nil, apperr.AuthError{Msg: "only the passenger or the trip driver may cancel a booking"}
	}

	if b.Status == model.BookingCancelled {
		if err := tx.Commit(txCtx); err != nil {
			return nil, fmt.Errorf("cancel: commit: %w", err)
		}
		return &CancelResult{Booking: *b, AlreadyCancelled: true}, nil
	}

	_, err = tx.Exec(txCtx, `UPDATE bookings SET status = 'cancelled' WHERE id = $1`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("cancel: update booking %s: %w", bookingID, err)
	}

	restored := false
	if tripStatus == model.TripScheduled {
		_, err = tx.Exec(txCtx, `
			UPDATE trips
			SET available_seats = available_seats + $2
			WHERE id = $1 AND available_seats + $2 <= seats_total
		`, b.TripID, b.SeatsBooked)
		if err != nil {
			return nil, fmt.Errorf("cancel: restore seats on trip %s: %w", b.TripID, err)
		}
		restored = true
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("cancel: commit: %w", err)
	}

	b.Status = model.BookingCancelled
	r.trips.BumpSearchVersion(ctx)
	return &CancelResult{Booking: *b, SeatsRestored: restored}, nil
}

// lockBookingWithTrip locks the booking and its trip rows and returns the
// booking plus the trip's driver and status.
func lockBookingWithTrip(ctx context.Context, tx pgx.Tx, bookingID string) (*model.Booking, string, model.TripStatus, error) {
	var (
		b          model.Booking
		driverID   string
		tripStatus model.TripStatus
	)
	err := tx.QueryRow(ctx, `
		SELECT b.id, b.trip_id, b.passenger_id, b.seats_booked, b.total_price,
		       b.status, b.created_at, t.driver_id, t.status
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.id = $1
		FOR UPDATE OF b, t
	`, bookingID).Scan(
		&b.ID, &b.TripID, &b.PassengerID, &b.SeatsBooked, &b.TotalPrice,
		&b.Status, &b.CreatedAt, &driverID, &tripStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", "", apperr.NotFoundError{Resource: "booking", Err: err}
		}
		return nil, "", "", fmt.Errorf("lock booking %s: %w", bookingID, err)
	}
	return &b, driverID, tripStatus, nil
}

// ─── Reads ──────────────────────────────────────────────────

// BookingDetail is a booking joined with its trip and both parties,
// used by the detail endpoint and the PDF receipt.
type BookingDetail struct {
	Booking       model.Booking `json:"booking"`
	Trip          model.Trip    `json:"trip"`
	DriverName    string        `json:"driver_name"`
	PassengerName string        `json:"passenger_name"`
}

// GetDetail fetches a booking with its trip and party names.
func (r *BookingRepository) GetDetail(ctx context.Context, bookingID string) (*BookingDetail, error) {
	var d BookingDetail
	err := r.db.QueryRow(ctx, `
		SELECT b.id, b.trip_id, b.passenger_id, b.seats_booked, b.total_price,
		       b.status, b.created_at,
		       t.id, t.driver_id, t.origin, t.destination, t.departure_at,
		       t.seats_total, t.available_seats, t.price_per_seat, t.status,
		       t.vehicle_details, t.notes, t.created_at,
		       d.full_name, p.full_name
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		JOIN profiles d ON d.id = t.driver_id
		JOIN profiles p ON p.id = b.passenger_id
		WHERE b.id = $1
	`, bookingID).Scan(
		&d.Booking.ID, &d.Booking.TripID, &d.Booking.PassengerID,
		&d.Booking.SeatsBooked, &d.Booking.TotalPrice, &d.Booking.Status, &d.Booking.CreatedAt,
		&d.Trip.ID, &d.Trip.DriverID, &d.Trip.Origin, &d.Trip.Destination, &d.Trip.DepartureAt,
		&d.Trip.SeatsTotal, &d.Trip.AvailableSeats, &d.Trip.PricePerSeat, &d.Trip.Status,
		&d.Trip.VehicleDetails, &d.Trip.Notes, &d.Trip.CreatedAt,
		&d.DriverName, &d.PassengerName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "booking", Err: err}
		}
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	return &d, nil
}

// ListByPassenger returns a passenger's bookings, newest first.
func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, trip_id, passenger_id, seats_booked, total_price, status, created_at
		FROM bookings
		WHERE passenger_id = $1
		ORDER BY created_at DESC, id ASC
	`, passengerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for passenger %s: %w", passengerID, err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.TripID, &b.PassengerID, &b.SeatsBooked,
			&b.TotalPrice, &b.Status, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
