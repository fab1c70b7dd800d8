package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/medieye/med-reminder/internal/otp"
)

type OTPHandler struct {
	service *otp.Service
}

func NewOTPHandler(s *otp.Service) *OTPHandler {
	return &OTPHandler{service: s}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Valid email is required")
		return
	}

	if err := h.service.Send(r.Context(), req.Email); err != nil {
		status, msg := otpError(err)
		respondError(w, status, msg)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.Verify(r.Context(), req.Email, req.OTP); err != nil {
		status, msg := otpError(err)
		respondError(w, status, msg)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "OTP verified!"})
}

func otpError(err error) (int, string) {
	switch {
	case errors.Is(err, otp.ErrInvalidEmail):
		return http.StatusBadRequest, "Valid email is required"
	case errors.Is(err, otp.ErrNotFound):
		return http.StatusBadRequest, "No OTP found"
	case errors.Is(err, otp.ErrExpired):
		return http.StatusBadRequest, "OTP expired"
	case errors.Is(err, otp.ErrMismatch):
		return http.StatusBadRequest, "Invalid OTP"
	case errors.Is(err, otp.ErrSendFailed):
		return http.StatusInternalServerError, "Failed to send email"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
