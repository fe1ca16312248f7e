package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/internal/repository"
)

// BookingService handles seat reservations with strict concurrency control.
//
// Concurrency model:
//   - Uses PostgreSQL SELECT ... FOR UPDATE (pessimistic locking).
//   - The trip row is locked for the duration of the transaction.
//   - Concurrent bookings for the same trip serialize automatically.
//   - A 5-second transaction deadline prevents lock starvation.
type BookingService struct {
	bookings *repository.BookingRepository
}

// NewBookingService creates a booking service.
func NewBookingService(bookings *repository.BookingRepository) *BookingService {
	return &BookingService{bookings: bookings}
}

// Request books seats on a trip for passengerID.
//
// Concurrency guarantee: two passengers requesting the last seats at the
// same millisecond — one gets the lock, decrements, commits; the other
// blocks, re-reads, finds the seats gone and receives ConflictError.
// Negative availability is impossible.
//
// The total price is computed inside the transaction from the locked trip
// row; anything a client sends for it is ignored upstream.
func (s *BookingService) Request(ctx context.Context, passengerID, tripID string, seats int) (*repository.BookingResult, error) {
	if passengerID == "" {
		return nil, apperr.AuthError{Msg: "missing passenger identity"}
	}
	if tripID == "" {
		return nil, apperr.ValidationError{Field: "trip_id", Msg: "trip id is required"}
	}
	if seats < 1 {
		return nil, apperr.ValidationError{Field: "seats", Msg: "must request at least 1 seat"}
	}

	result, err := s.bookings.Create(ctx, passengerID, tripID, seats, uuid.NewString())
	if err != nil {
		return nil, classify(err)
	}

	log.Printf("[booking] booked %d seat(s) on trip %s — %d remaining",
		result.Booking.SeatsBooked, tripID, result.RemainingSeats)
	return result, nil
}

// Confirm transitions a pending booking to confirmed (driver-only).
func (s *BookingService) Confirm(ctx context.Context, bookingID, callerID string) (*model.Booking, error) {
	if callerID == "" {
		return nil, apperr.AuthError{Msg: "missing caller identity"}
	}
	b, err := s.bookings.Confirm(ctx, bookingID, callerID)
	if err != nil {
		return nil, classify(err)
	}
	log.Printf("[booking] confirmed booking %s", bookingID)
	return b, nil
}

// Cancel cancels a booking and restores its seats to the trip. Cancelling
// an already-cancelled booking is a no-op returning the current state.
func (s *BookingService) Cancel(ctx context.Context, bookingID, callerID string) (*repository.CancelResult, error) {
	if callerID == "" {
		return nil, apperr.AuthError{Msg: "missing caller identity"}
	}

	result, err := s.bookings.Cancel(ctx, bookingID, callerID)
	if err != nil {
		return nil, classify(err)
	}

	if result.AlreadyCancelled {
		log.Printf("[booking] booking %s already cancelled, no-op", bookingID)
	} else {
		log.Printf("[booking] cancelled booking %s (seats_restored=%v)", bookingID, result.SeatsRestored)
	}
	return result, nil
}

// GetDetail returns a booking with its trip and party names. Only the
// passenger or the trip's driver may read it.
func (s *BookingService) GetDetail(ctx context.Context, bookingID, callerID string) (*repository.BookingDetail, error) {
	var d *repository.BookingDetail
	err := withRetry(ctx, func() error {
		var err error
		d, err = s.bookings.GetDetail(ctx, bookingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if callerID != d.Booking.PassengerID && callerID != d.Trip.DriverID {
		return nil, apperr.AuthError{Msg: "not a party to this booking"}
	}
	return d, nil
}

// ListByPassenger returns the caller's bookings.
func (s *BookingService) ListByPassenger(ctx context.Context, passengerID string) ([]model.Booking, error) {
	if passengerID == "" {
		return nil, apperr.AuthError{Msg: "missing passenger identity"}
	}
	var bookings []model.Booking
	err := withRetry(ctx, func() error {
		var err error
		bookings, err = s.bookings.ListByPassenger(ctx, passengerID)
		return err
	})
	return bookings, err
}
