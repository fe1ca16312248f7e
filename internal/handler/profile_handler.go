package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daleapp/dale-backend/internal/middleware"
	"github.com/daleapp/dale-backend/internal/service"
)

// Avatar uploads are decoded in memory; cap the multipart form size.
const maxAvatarBytes = 5 << 20

// ProfileHandler handles profile HTTP requests.
type ProfileHandler struct {
	profileSvc *service.ProfileService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profileSvc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc}
}

// Get handles GET /api/v1/profiles/{profile_id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profileID := mux.Vars(r)["profile_id"]

	profile, err := h.profileSvc.Get(r.Context(), profileID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateMe handles PATCH /api/v1/profiles/me
//
// Empty fields in the payload leave the stored value untouched.
func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var patch service.MetadataPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	profile, err := h.profileSvc.UpdateMetadata(r.Context(), middleware.UserID(r.Context()), patch)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UploadAvatar handles POST /api/v1/profiles/me/avatar
//
// Expects a multipart form with an "avatar" file field. The image is
// normalized to a 256x256 JPEG and served under /uploads/.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid multipart form or file too large",
		})
		return
	}

	file, _, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "missing avatar file field",
		})
		return
	}
	defer file.Close()

	profile, err := h.profileSvc.UploadAvatar(r.Context(), middleware.UserID(r.Context()), file)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
