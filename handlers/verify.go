// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/models"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/verify"
)

type VerifyHandler struct {
	verifier *verify.Service
}

func NewVerifyHandler(verifier *verify.Service) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

// RequestOTP handles POST /verify/request-otp
func (h *VerifyHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req models.RequestOTPRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if strings.TrimSpace(req.RegNo) == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "reg_no is required")
		return
	}

	issued, err := h.verifier.RequestOTP(r.Context(), req.RegNo, verify.RequestMeta{IP: middleware.ClientIP(r)})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	// The code itself is never echoed
	middleware.JSONResponse(w, http.StatusOK, models.RequestOTPResponse{
		Message:   "Verification code sent. It expires in " + notify.DescribeDuration(issued.ExpiresIn) + ".",
		ExpiresIn: int(issued.ExpiresIn.Seconds()),
		SentVia:   issued.SentVia,
	})
}

// Confirm handles POST /verify/confirm
func (h *VerifyHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req models.ConfirmOTPRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if strings.TrimSpace(req.RegNo) == "" || req.OTP == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "reg_no and otp are required")
		return
	}

	b, err := h.verifier.ConfirmOTP(r.Context(), req.RegNo, strings.TrimSpace(req.OTP), verify.RequestMeta{IP: middleware.ClientIP(r)})
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ConfirmOTPResponse{
		Message:     "Verification successful",
		BallotToken: b.Token,
		ExpiresAt:   b.ExpiresAt,
	})
}
