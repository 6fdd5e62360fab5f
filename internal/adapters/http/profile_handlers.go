package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/konnexhq/identity-service/internal/application"
	"github.com/konnexhq/identity-service/internal/domain"
)

// maxPatchBytes bounds profile merge payloads; profile documents are small.
const maxPatchBytes = 64 << 10

// UpdateProfileHandler handles PATCH /profile/{role}/{uid}: a merge-write of
// the profile document plus cache write-through and snapshot refresh.
func UpdateProfileHandler(profiles *application.ProfileService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := domain.Role(r.PathValue("role"))
		uid := r.PathValue("uid")
		if !role.Valid() {
			logger.Warn(r.Context(), "Profile update with unknown role", "role", string(role))
			domain.NewErrorResponse(domain.ErrInvalidRole, "Unknown role", "Role must be job-seeker or employer.").
				WriteJSON(w, http.StatusBadRequest)
			return
		}

		patch, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBytes))
		if err != nil {
			domain.NewErrorResponse(domain.ErrBadRequest, "Failed to read request body", err.Error()).
				WriteJSON(w, http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		if len(patch) == 0 || !json.Valid(patch) {
			domain.NewErrorResponse(domain.ErrBadRequest, "Invalid merge patch", "Body must be a JSON object of fields to update.").
				WriteJSON(w, http.StatusBadRequest)
			return
		}

		profile, err := profiles.UpdateProfile(r.Context(), role, uid, patch)
		if err != nil {
			logger.Error(r.Context(), "Profile update failed", "uid", uid, "error", err.Error())
			domain.NewErrorResponse(domain.ErrInternal, "Profile update failed", err.Error()).
				WriteJSON(w, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(profile); err != nil {
			logger.Error(r.Context(), "Failed to encode merged profile", "error", err.Error())
		}
	}
}

// DeleteAccountHandler handles DELETE /account/{uid}: removes both potential
// profile documents and clears the identity cache.
func DeleteAccountHandler(profiles *application.ProfileService, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.PathValue("uid")
		if uid == "" {
			domain.NewErrorResponse(domain.ErrBadRequest, "uid is required", "").
				WriteJSON(w, http.StatusBadRequest)
			return
		}

		if err := profiles.DeleteAccount(r.Context(), uid); err != nil {
			logger.Error(r.Context(), "Account deletion failed", "uid", uid, "error", err.Error())
			domain.NewErrorResponse(domain.ErrInternal, "Account deletion failed", err.Error()).
				WriteJSON(w, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
