package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daleapp/dale-backend/internal/middleware"
	"github.com/daleapp/dale-backend/internal/service"
)

// BookingHandler handles booking HTTP requests.
type BookingHandler struct {
	bookingSvc *service.BookingService
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(bookingSvc *service.BookingService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc}
}

// bookingRequest is the payload for requesting seats on a trip.
// There is deliberately no price field; the server computes the total
// from the trip's current price per seat.
type bookingRequest struct {
	Seats int `json:"seats"`
}

// Request handles POST /api/v1/trips/{trip_id}/bookings
//
// Atomically reserves seats on the trip for the authenticated passenger.
//
// Response codes:
//
//	201 — Seats reserved (returns the booking and remaining seats)
//	400 — Invalid payload or seat count
//	404 — Trip not found
//	409 — Not enough seats remaining
//	422 — Trip no longer bookable (completed or cancelled)
func (h *BookingHandler) Request(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]

	var in bookingRequest
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.bookingSvc.Request(r.Context(), middleware.UserID(r.Context()), tripID, in.Seats)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"booking":         result.Booking,
		"remaining_seats": result.RemainingSeats,
	})
}

// Confirm handles POST /api/v1/bookings/{booking_id}/confirm
//
// Driver-only. Confirming an already-confirmed booking is a no-op.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["booking_id"]

	booking, err := h.bookingSvc.Confirm(r.Context(), bookingID, middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// Cancel handles POST /api/v1/bookings/{booking_id}/cancel
//
// Passenger or trip driver. Idempotent: cancelling an already-cancelled
// booking returns 200 with cancelled=false and no seat restoration.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["booking_id"]

	result, err := h.bookingSvc.Cancel(r.Context(), bookingID, middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking":        result.Booking,
		"cancelled":      !result.AlreadyCancelled,
		"seats_restored": result.SeatsRestored,
	})
}

// Get handles GET /api/v1/bookings/{booking_id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["booking_id"]

	detail, err := h.bookingSvc.GetDetail(r.Context(), bookingID, middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// ListMine handles GET /api/v1/bookings
//
// Returns the caller's bookings, newest first.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookingSvc.ListByPassenger(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// Receipt handles GET /api/v1/bookings/{booking_id}/receipt
//
// Streams a PDF receipt rendered inline. Same access rule as Get.
func (h *BookingHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["booking_id"]

	detail, err := h.bookingSvc.GetDetail(r.Context(), bookingID, middleware.UserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}

	pdf, filename, err := service.BuildBookingReceipt(detail)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
