package auth

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/device"
)

// Handler exposes HTTP handlers for the mock auth flow.
type Handler struct {
	Service *Service
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Signup handles POST /api/v1/auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req signupRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sess, err := h.Service.Signup(r.Context(), deviceID, req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, sess)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	sess, err := h.Service.Login(r.Context(), deviceID, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sess)
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Service.Logout(r.Context(), deviceID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/auth/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sess, err := h.Service.CheckSession(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, sess)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrInvalidToken):
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no active session", nil)
	default:
		common.WriteError(w, err)
	}
}
