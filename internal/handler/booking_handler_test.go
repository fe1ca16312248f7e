package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/daleapp/dale-backend/internal/middleware"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/internal/repository"
	"github.com/daleapp/dale-backend/internal/service"
)

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func newBookingHandler(t *testing.T) (pgxmock.PgxPoolIface, *BookingHandler) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	trips := repository.NewTripRepository(mock, nil)
	svc := service.NewBookingService(repository.NewBookingRepository(mock, trips))
	return mock, NewBookingHandler(svc)
}

// bookingRequestAs sends POST /trips/{trip_id}/bookings through the handler
// as the given authenticated user.
func bookingRequestAs(h *BookingHandler, userID, tripID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trips/"+tripID+"/bookings", jsonBody(body))
	req = mux.SetURLVars(req, map[string]string{"trip_id": tripID})
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	h.Request(rec, req)
	return rec
}

func TestBookingRequestEndpoint(t *testing.T) {
	mock, h := newBookingHandler(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT driver_id, status, available_seats, price_per_seat`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"driver_id", "status", "available_seats", "price_per_seat"}).
			AddRow("driver-1", model.TripScheduled, 3, 12.50))
	mock.ExpectQuery(`UPDATE trips`).
		WithArgs("trip-1", 2).
		WillReturnRows(pgxmock.NewRows([]string{"available_seats"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(pgxmock.AnyArg(), "trip-1", "pass-1", 2, 25.0, model.BookingPending).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectCommit()

	rec := bookingRequestAs(h, "pass-1", "trip-1", `{"seats": 2}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body)
	}

	var resp struct {
		Booking        model.Booking `json:"booking"`
		RemainingSeats int           `json:"remaining_seats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.RemainingSeats != 1 || resp.Booking.TotalPrice != 25.0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestBookingRequestConflictEndpoint(t *testing.T) {
	mock, h := newBookingHandler(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT driver_id, status, available_seats, price_per_seat`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"driver_id", "status", "available_seats", "price_per_seat"}).
			AddRow("driver-1", model.TripScheduled, 1, 12.50))
	mock.ExpectRollback()

	rec := bookingRequestAs(h, "pass-1", "trip-1", `{"seats": 2}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (body %s)", rec.Code, rec.Body)
	}
}

func TestBookingRequestIgnoresClientPrice(t *testing.T) {
	_, h := newBookingHandler(t)

	// A client trying to set its own total is rejected outright.
	rec := bookingRequestAs(h, "pass-1", "trip-1", `{"seats": 2, "total_price": 0.01}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
	}
}

func TestBookingReceiptEndpoint(t *testing.T) {
	mock, h := newBookingHandler(t)
	now := time.Now()

	mock.ExpectQuery(`FROM bookings b`).
		WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"b_id", "b_trip_id", "b_passenger_id", "b_seats", "b_total", "b_status", "b_created",
			"t_id", "t_driver_id", "t_origin", "t_destination", "t_departure",
			"t_seats_total", "t_available", "t_price", "t_status", "t_vehicle", "t_notes", "t_created",
			"driver_name", "passenger_name",
		}).AddRow(
			"bk-1", "trip-1", "pass-1", 2, 25.0, model.BookingConfirmed, now,
			"trip-1", "driver-1", "Caracas", "Valencia", now.Add(time.Hour),
			4, 2, 12.50, model.TripScheduled, "", "", now,
			"Maria", "Pedro",
		))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/bk-1/receipt", nil)
	req = mux.SetURLVars(req, map[string]string{"booking_id": "bk-1"})
	req = req.WithContext(middleware.WithUserID(req.Context(), "pass-1"))
	rec := httptest.NewRecorder()
	h.Receipt(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	// Rendered in the browser, not forced as a download.
	if cd := rec.Header().Get("Content-Disposition"); cd != `inline; filename="receipt_bk-1.pdf"` {
		t.Fatalf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("body is not a PDF document")
	}
}

func TestBookingCancelEndpointIdempotent(t *testing.T) {
	mock, h := newBookingHandler(t)
	now := time.Now()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT b\.id, b\.trip_id, b\.passenger_id`).
		WithArgs("bk-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "trip_id", "passenger_id", "seats_booked", "total_price",
			"status", "created_at", "driver_id", "t_status",
		}).AddRow("bk-1", "trip-1", "pass-1", 2, 25.0, model.BookingCancelled, now, "driver-1", model.TripScheduled))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/bk-1/cancel", nil)
	req = mux.SetURLVars(req, map[string]string{"booking_id": "bk-1"})
	req = req.WithContext(middleware.WithUserID(req.Context(), "pass-1"))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body)
	}

	var resp struct {
		Cancelled     bool `json:"cancelled"`
		SeatsRestored bool `json:"seats_restored"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Cancelled || resp.SeatsRestored {
		t.Fatalf("idempotent cancel reported a mutation: %+v", resp)
	}
}
