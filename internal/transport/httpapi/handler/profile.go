package handler

import (
	"encoding/json"
	"net/http"

	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/internal/user"
)

// ProfileHandler handles customer self-service profile requests
type ProfileHandler struct {
	users *user.Service
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(users *user.Service) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// GetProfile handles GET /profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetPrincipalID(r.Context())

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, userInfo(u), http.StatusOK)
}

// UpdateProfileRequest represents the profile update request body. Omitted
// fields stay unchanged.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// UpdateProfile handles PUT /profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, _ := middleware.GetPrincipalID(r.Context())
	u, err := h.users.UpdateProfile(r.Context(), userID, user.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, userInfo(u), http.StatusOK)
}

// ChangePasswordRequest represents the password change request body
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles POST /profile/change-password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(w, "old_password and new_password are required", http.StatusBadRequest)
		return
	}

	userID, _ := middleware.GetPrincipalID(r.Context())
	if err := h.users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, map[string]string{"status": "password changed"}, http.StatusOK)
}
