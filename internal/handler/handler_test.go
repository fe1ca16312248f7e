package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/daleapp/dale-backend/internal/apperr"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", apperr.ValidationError{Field: "seats", Msg: "must be positive"}, http.StatusBadRequest, "validation_error"},
		{"auth", apperr.AuthError{Msg: "not your trip"}, http.StatusForbidden, "forbidden"},
		{"not found", apperr.NotFoundError{Resource: "trip"}, http.StatusNotFound, "not_found"},
		{"state", apperr.StateError{Resource: "trip", Current: "cancelled"}, http.StatusUnprocessableEntity, "invalid_state"},
		{"conflict", apperr.ConflictError{Resource: "trip", Msg: "1 seats remaining, 2 requested"}, http.StatusConflict, "conflict"},
		{"transient", apperr.TransientError{Err: errors.New("timeout")}, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body["error"] != tt.wantCode {
				t.Fatalf("error code = %q, want %q", body["error"], tt.wantCode)
			}
		})
	}
}

func TestRespondErrorStateMessage(t *testing.T) {
	// Repositories usually build StateError from resource and status alone;
	// the response must still carry a usable message.
	rec := httptest.NewRecorder()
	respondError(rec, apperr.StateError{Resource: "trip", Current: "cancelled"})

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if !strings.Contains(body["message"], "trip") || !strings.Contains(body["message"], "cancelled") {
		t.Fatalf("message %q does not describe the state", body["message"])
	}
}

func TestRespondErrorWrappedKind(t *testing.T) {
	// Kinds must survive fmt wrapping on the way out of the service layer.
	wrapped := errors.New("request booking: " + apperr.ConflictError{}.Error())
	rec := httptest.NewRecorder()
	respondError(rec, wrapped)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("string lookalike treated as kind: %d", rec.Code)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"seats": 2, "total_price": 0.01}`))
	var in struct {
		Seats int `json:"seats"`
	}
	if err := decodeJSON(req, &in); err == nil {
		t.Fatal("unknown field accepted")
	}
}
