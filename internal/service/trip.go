package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/internal/repository"
)

// TripService owns trip creation, search and the trip lifecycle.
type TripService struct {
	trips *repository.TripRepository
	loc   *time.Location
	now   func() time.Time
}

// NewTripService creates a trip service. loc is the reference timezone used
// to resolve calendar-day search filters.
func NewTripService(trips *repository.TripRepository, loc *time.Location) *TripService {
	if loc == nil {
		loc = time.UTC
	}
	return &TripService{trips: trips, loc: loc, now: time.Now}
}

// CreateTripInput carries driver-submitted trip data. The driver identity is
// never part of this payload; it always comes from the verified session.
type CreateTripInput struct {
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureAt    time.Time `json:"departure_at"`
	AvailableSeats int       `json:"available_seats"`
	PricePerSeat   float64   `json:"price_per_seat"`
	VehicleDetails string    `json:"vehicle_details"`
	Notes          string    `json:"notes"`
}

// Create validates and persists a new scheduled trip for driverID.
// All validation failures surface before any persistence call.
func (s *TripService) Create(ctx context.Context, driverID string, in CreateTripInput) (*model.Trip, error) {
	if driverID == "" {
		return nil, apperr.AuthError{Msg: "missing driver identity"}
	}

	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)

	switch {
	case in.Origin == "":
		return nil, apperr.ValidationError{Field: "origin", Msg: "origin is required"}
	case in.Destination == "":
		return nil, apperr.ValidationError{Field: "destination", Msg: "destination is required"}
	case strings.EqualFold(in.Origin, in.Destination):
		return nil, apperr.ValidationError{Field: "destination", Msg: "origin and destination must be different"}
	case in.DepartureAt.IsZero():
		return nil, apperr.ValidationError{Field: "departure_at", Msg: "departure time is required"}
	case in.DepartureAt.Before(s.now()):
		return nil, apperr.ValidationError{Field: "departure_at", Msg: "departure time must not be in the past"}
	case in.AvailableSeats < 1:
		return nil, apperr.ValidationError{Field: "available_seats", Msg: "must have at least 1 seat"}
	case in.PricePerSeat < 0:
		return nil, apperr.ValidationError{Field: "price_per_seat", Msg: "price must not be negative"}
	}

	trip := model.Trip{
		ID:             uuid.NewString(),
		DriverID:       driverID,
		Origin:         in.Origin,
		Destination:    in.Destination,
		DepartureAt:    in.DepartureAt,
		SeatsTotal:     in.AvailableSeats,
		PricePerSeat:   in.PricePerSeat,
		VehicleDetails: in.VehicleDetails,
		Notes:          in.Notes,
	}

	var created model.Trip
	err := withRetry(ctx, func() error {
		var err error
		created, err = s.trips.Insert(ctx, trip)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[trip] created trip %s: %s → %s, %d seats", created.ID, created.Origin, created.Destination, created.SeatsTotal)
	return &created, nil
}

// Search returns scheduled, bookable trips matching the filter.
// The date filter is a calendar day in the service reference timezone,
// resolved to the departure window [00:00, next day 00:00).
func (s *TripService) Search(ctx context.Context, f model.SearchFilter) ([]model.TripWithDriver, error) {
	params := repository.SearchParams{
		Origin:      strings.TrimSpace(f.Origin),
		Destination: strings.TrimSpace(f.Destination),
		Passengers:  f.Passengers,
		SortBy:      f.SortBy,
	}
	if params.Passengers < 1 {
		params.Passengers = 1
	}
	if f.SortBy != "" && f.SortBy != model.SortByDeparture && f.SortBy != model.SortByPrice {
		return nil, apperr.ValidationError{Field: "sort_by", Msg: "unknown sort key"}
	}

	if f.Date != "" {
		day, err := time.ParseInLocation("2006-01-02", f.Date, s.loc)
		if err != nil {
			return nil, apperr.ValidationError{Field: "date", Msg: "expected YYYY-MM-DD"}
		}
		from := day
		to := day.AddDate(0, 0, 1)
		params.From = &from
		params.To = &to
	}

	var results []model.TripWithDriver
	err := withRetry(ctx, func() error {
		var err error
		results, err = s.trips.Search(ctx, params)
		return err
	})
	return results, err
}

// Get returns a single trip with its driver profile.
func (s *TripService) Get(ctx context.Context, tripID string) (*model.TripWithDriver, error) {
	var tw *model.TripWithDriver
	err := withRetry(ctx, func() error {
		var err error
		tw, err = s.trips.GetWithDriver(ctx, tripID)
		return err
	})
	return tw, err
}

// ListByDriver returns all trips posted by a driver.
func (s *TripService) ListByDriver(ctx context.Context, driverID string) ([]model.Trip, error) {
	var trips []model.Trip
	err := withRetry(ctx, func() error {
		var err error
		trips, err = s.trips.ListByDriver(ctx, driverID)
		return err
	})
	return trips, err
}

// Cancel transitions a scheduled trip to cancelled, cascade-cancelling its
// active bookings. Only the trip's driver may cancel.
func (s *TripService) Cancel(ctx context.Context, tripID, callerID string) (*repository.CancelTripResult, error) {
	if callerID == "" {
		return nil, apperr.AuthError{Msg: "missing caller identity"}
	}

	result, err := s.trips.CancelTrip(ctx, tripID, callerID)
	if err != nil {
		return nil, classify(err)
	}

	log.Printf("[trip] cancelled trip %s (%d bookings cascade-cancelled)", tripID, result.BookingsCancelled)
	return result, nil
}
