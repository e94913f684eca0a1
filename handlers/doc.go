// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the ballotbox API.

# Handler Types

Each handler is a thin struct over a service:

  - VerifyHandler: OTP request and confirmation (verify.Service)
  - VoteHandler: Ballot contents and vote casting (ballot.Service)
  - ResultsHandler: Per-position tallies (ballot.Service)

Handlers decode the request, check required fields, and pass service
errors to middleware.WriteError, which maps apperr kinds to status codes.

# Voting Flow

	POST /verify/request-otp → RequestOTP (code delivered out of band)
	POST /verify/confirm     → Confirm (returns ballotToken)
	GET  /vote/ballot        → GetBallot
	POST /vote               → Cast

The ballot token is the only credential accepted by the voting routes.
GetBallot reads it from the token query parameter and Cast from the JSON
body; both fall back to the X-Ballot-Token header. No voter identity is ever read on those routes.

# Results

	GET /positions/{id}/results → GetResults

Returns 403 until the position's voting window has closed.
*/
package handlers
