package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
)

func newTripMock(t *testing.T) (pgxmock.PgxPoolIface, *TripRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock, NewTripRepository(mock, nil)
}

var tripRowColumns = []string{
	"id", "driver_id", "origin", "destination", "departure_at",
	"seats_total", "available_seats", "price_per_seat", "status",
	"vehicle_details", "notes", "created_at",
}

func tripRowValues(t model.Trip) []any {
	return []any{
		t.ID, t.DriverID, t.Origin, t.Destination, t.DepartureAt,
		t.SeatsTotal, t.AvailableSeats, t.PricePerSeat, t.Status,
		t.VehicleDetails, t.Notes, t.CreatedAt,
	}
}

func TestInsertTrip(t *testing.T) {
	mock, repo := newTripMock(t)
	createdAt := time.Now()

	// available_seats and status are fixed by the repository, whatever the
	// caller put in the struct.
	mock.ExpectQuery(`INSERT INTO trips`).
		WithArgs("trip-1", "driver-1", "Caracas", "Valencia", pgxmock.AnyArg(),
			4, 4, 15.0, model.TripScheduled, "Blue sedan", "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	trip, err := repo.Insert(context.Background(), model.Trip{
		ID:             "trip-1",
		DriverID:       "driver-1",
		Origin:         "Caracas",
		Destination:    "Valencia",
		DepartureAt:    time.Now().Add(24 * time.Hour),
		SeatsTotal:     4,
		AvailableSeats: 99,
		PricePerSeat:   15.0,
		Status:         model.TripCompleted,
		VehicleDetails: "Blue sedan",
	})
	if err != nil {
		t.Fatalf("insert trip: %v", err)
	}
	if trip.Status != model.TripScheduled || trip.AvailableSeats != 4 {
		t.Fatalf("insert did not normalize status/seats: %+v", trip)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSearchComposesFilters(t *testing.T) {
	mock, repo := newTripMock(t)
	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	trip := model.Trip{
		ID: "trip-1", DriverID: "driver-1", Origin: "Caracas", Destination: "Valencia",
		DepartureAt: from.Add(9 * time.Hour), SeatsTotal: 4, AvailableSeats: 3,
		PricePerSeat: 15.0, Status: model.TripScheduled, CreatedAt: time.Now(),
	}

	rows := pgxmock.NewRows(append(append([]string{}, tripRowColumns...), "p_id", "full_name", "photo_url")).
		AddRow(append(tripRowValues(trip), "driver-1", "Maria", "/uploads/avatars/driver-1.jpg")...)

	mock.ExpectQuery(`(?s)FROM trips t\s+JOIN profiles p ON p\.id = t\.driver_id\s+WHERE t\.status = 'scheduled' AND t\.available_seats >= \$1`).
		WithArgs(2, "cara", "valen", from, to).
		WillReturnRows(rows)

	results, err := repo.Search(context.Background(), SearchParams{
		Origin:      "cara",
		Destination: "valen",
		From:        &from,
		To:          &to,
		Passengers:  2,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "trip-1" || results[0].Driver.FullName != "Maria" {
		t.Fatalf("unexpected results: %+v", results)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSearchSortsByPrice(t *testing.T) {
	mock, repo := newTripMock(t)

	mock.ExpectQuery(`ORDER BY t\.price_per_seat ASC, t\.id ASC`).
		WithArgs(1).
		WillReturnRows(pgxmock.NewRows(append(append([]string{}, tripRowColumns...), "p_id", "full_name", "photo_url")))

	_, err := repo.Search(context.Background(), SearchParams{SortBy: model.SortByPrice})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetTripNotFound(t *testing.T) {
	mock, repo := newTripMock(t)

	mock.ExpectQuery(`FROM trips t`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetWithDriver(context.Background(), "nope")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCancelTripCascadesBookings(t *testing.T) {
	mock, repo := newTripMock(t)
	trip := model.Trip{
		ID: "trip-1", DriverID: "driver-1", Origin: "Caracas", Destination: "Valencia",
		DepartureAt: time.Now().Add(time.Hour), SeatsTotal: 4, AvailableSeats: 1,
		PricePerSeat: 15.0, Status: model.TripScheduled, CreatedAt: time.Now(),
	}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT id, driver_id, origin, destination`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(tripRowColumns).AddRow(tripRowValues(trip)...))
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs("trip-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	result, err := repo.CancelTrip(context.Background(), "trip-1", "driver-1")
	if err != nil {
		t.Fatalf("cancel trip: %v", err)
	}
	if result.BookingsCancelled != 3 {
		t.Fatalf("bookings cancelled = %d, want 3", result.BookingsCancelled)
	}
	if result.Trip.Status != model.TripCancelled {
		t.Fatalf("status = %s, want cancelled", result.Trip.Status)
	}
	// Seats return to the full pool once every booking is gone.
	if result.Trip.AvailableSeats != result.Trip.SeatsTotal {
		t.Fatalf("available = %d, want %d", result.Trip.AvailableSeats, result.Trip.SeatsTotal)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelTripStatementsCarryTxDeadline(t *testing.T) {
	db := &ctxRecordingDB{}
	repo := NewTripRepository(db, nil)

	if _, err := repo.CancelTrip(context.Background(), "trip-1", "driver-1"); !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFoundError from empty store, got %v", err)
	}
	if db.stmtCtx == nil {
		t.Fatal("no statement was issued")
	}
	if _, ok := db.stmtCtx.Deadline(); !ok {
		t.Fatal("locking statement context has no deadline")
	}
}

func TestCancelTripNotDriver(t *testing.T) {
	mock, repo := newTripMock(t)
	trip := model.Trip{
		ID: "trip-1", DriverID: "driver-1", SeatsTotal: 4, AvailableSeats: 4,
		Status: model.TripScheduled, DepartureAt: time.Now(), CreatedAt: time.Now(),
	}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT id, driver_id, origin, destination`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(tripRowColumns).AddRow(tripRowValues(trip)...))
	mock.ExpectRollback()

	_, err := repo.CancelTrip(context.Background(), "trip-1", "pass-1")
	if !apperr.IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestCancelTripAlreadyTerminal(t *testing.T) {
	mock, repo := newTripMock(t)
	trip := model.Trip{
		ID: "trip-1", DriverID: "driver-1", SeatsTotal: 4, AvailableSeats: 4,
		Status: model.TripCancelled, DepartureAt: time.Now(), CreatedAt: time.Now(),
	}

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT id, driver_id, origin, destination`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows(tripRowColumns).AddRow(tripRowValues(trip)...))
	mock.ExpectRollback()

	_, err := repo.CancelTrip(context.Background(), "trip-1", "driver-1")
	if !apperr.IsState(err) {
		t.Fatalf("expected StateError, got %v", err)
	}
}
