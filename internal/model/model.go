// Package model contains domain models for the Dale marketplace.
// These structs map to the PostgreSQL schema defined in migrations/0001_create_schema.up.sql.
package model

import "time"

// ─── Enums ──────────────────────────────────────────────────

type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Terminal reports whether no further trip transitions are allowed.
func (s TripStatus) Terminal() bool {
	return s == TripCompleted || s == TripCancelled
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Active reports whether the booking currently holds seats on its trip.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// ─── Domain Models ──────────────────────────────────────────

// Profile maps to the `profiles` table.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	Rating       float64   `json:"rating"`
	TotalReviews int       `json:"total_reviews"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DriverSummary is the minimal profile slice joined onto search results.
type DriverSummary struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Trip maps to the `trips` table.
//
// SeatsTotal is the seat count fixed at creation. For every trip the seat
// conservation invariant holds:
//
//	available_seats + Σ seats_booked(active bookings) == seats_total
type Trip struct {
	ID             string     `json:"id"`
	DriverID       string     `json:"driver_id"`
	Origin         string     `json:"origin"`
	Destination    string     `json:"destination"`
	DepartureAt    time.Time  `json:"departure_at"`
	SeatsTotal     int        `json:"seats_total"`
	AvailableSeats int        `json:"available_seats"`
	PricePerSeat   float64    `json:"price_per_seat"`
	Status         TripStatus `json:"status"`
	VehicleDetails string     `json:"vehicle_details,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TripWithDriver is a trip plus the driver slice rendered on search and
// detail pages.
type TripWithDriver struct {
	Trip
	Driver DriverSummary `json:"driver"`
}

// Booking maps to the `bookings` table.
type Booking struct {
	ID          string        `json:"id"`
	TripID      string        `json:"trip_id"`
	PassengerID string        `json:"passenger_id"`
	SeatsBooked int           `json:"seats_booked"`
	TotalPrice  float64       `json:"total_price"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ─── Search DTOs ────────────────────────────────────────────

// SortKey selects the ordering of search results.
type SortKey string

const (
	SortByDeparture SortKey = "departure_at"
	SortByPrice     SortKey = "price_per_seat"
)

// SearchFilter carries the composable trip search criteria. Zero values
// mean "not supplied"; Passengers defaults to 1 when < 1.
type SearchFilter struct {
	Origin      string
	Destination string
	Date        string // calendar day, YYYY-MM-DD, in the service reference timezone
	Passengers  int
	SortBy      SortKey
}
