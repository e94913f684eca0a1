// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/middleware"
)

type ResultsHandler struct {
	ballots *ballot.Service
}

func NewResultsHandler(ballots *ballot.Service) *ResultsHandler {
	return &ResultsHandler{ballots: ballots}
}

// GetResults handles GET /positions/{id}/results
// Results are sealed until the position's voting window has closed
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	positionID := r.PathValue("id")
	if positionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "position id is required")
		return
	}

	results, err := h.ballots.Results(r.Context(), positionID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, results)
}
