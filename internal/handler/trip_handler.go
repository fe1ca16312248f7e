package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/daleapp/dale-backend/internal/middleware"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/internal/service"
)

// TripHandler handles trip HTTP requests.
type TripHandler struct {
	tripSvc *service.TripService
}

// NewTripHandler creates a new trip handler.
func NewTripHandler(tripSvc *service.TripService) *TripHandler {
	return &TripHandler{tripSvc: tripSvc}
}

// Search handles GET /api/v1/trips
//
// Query parameters:
//
//	origin      — substring match, case-insensitive
//	destination — substring match, case-insensitive
//	date        — calendar day, YYYY-MM-DD
//	passengers  — minimum free seats, default 1
//	sort_by     — departure_at (default) or price_per_seat
//
// Only scheduled trips with enough free seats are returned.
func (h *TripHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.SearchFilter{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Date:        q.Get("date"),
		SortBy:      model.SortKey(q.Get("sort_by")),
	}
	if raw := q.Get("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid passengers: must be a positive integer",
			})
			return
		}
		filter.Passengers = n
	}

	trips, err := h.tripSvc.Search(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trips": trips,
		"count": len(trips),
	})
}

// Create handles POST /api/v1/trips
//
// The driver identity comes from the session token; a driver_id in the
// payload is rejected as an unknown field.
func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateTripInput
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	trip, err := h.tripSvc.Create(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, trip)
}

// Get handles GET /api/v1/trips/{trip_id}
func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]

	trip, err := h.tripSvc.Get(r.Context(), tripID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trip)
}

// Cancel handles POST /api/v1/trips/{trip_id}/cancel
//
// Driver-only. Cascade-cancels every active booking on the trip.
func (h *TripHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]

	result, err := h.tripSvc.Cancel(r.Context(), tripID, middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trip":               result.Trip,
		"bookings_cancelled": result.BookingsCancelled,
	})
}

// ListMine handles GET /api/v1/trips/mine
//
// Returns the caller's posted trips, newest departure first.
func (h *TripHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	trips, err := h.tripSvc.ListByDriver(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trips": trips,
		"count": len(trips),
	})
}
