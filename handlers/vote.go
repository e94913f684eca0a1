// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/models"
)

// BallotTokenHeader carries the ballot token when it is not in the query
const BallotTokenHeader = "X-Ballot-Token"

type VoteHandler struct {
	ballots *ballot.Service
}

func NewVoteHandler(ballots *ballot.Service) *VoteHandler {
	return &VoteHandler{ballots: ballots}
}

// GetBallot handles GET /vote/ballot?token=...
// Returns the positions open right now and their approved candidates
func (h *VoteHandler) GetBallot(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get(BallotTokenHeader))
	}
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	contents, err := h.ballots.Contents(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, contents)
}

// Cast handles POST /vote
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = strings.TrimSpace(r.Header.Get(BallotTokenHeader))
	}
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}
	if len(req.Votes) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "votes must not be empty")
		return
	}
	for _, v := range req.Votes {
		if v.PositionID == "" || v.CandidateID == "" {
			middleware.ErrorResponse(w, http.StatusBadRequest, "each vote needs positionId and candidateId")
			return
		}
	}

	n, err := h.ballots.Cast(r.Context(), token, req.Votes)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CastVoteResponse{
		Message: "Votes recorded successfully",
		Votes:   n,
	})
}
