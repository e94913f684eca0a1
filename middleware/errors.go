// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/ballotbox/apperr"
	"github.com/danielhkuo/ballotbox/models"
)

// StatusOf maps an error kind to its HTTP status
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders a service error. Internal causes are logged and
// replaced with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		slog.Error("request failed", "error", err)
		ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := StatusOf(e.Kind)
	if e.Kind == apperr.KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}

	JSONResponse(w, status, models.ErrorResponse{
		Error:      http.StatusText(status),
		Message:    e.Message,
		RetryAfter: e.RetryAfter,
		Details:    e.Details,
	})
}
