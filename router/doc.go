// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the ballotbox API.

# Route Registration

NewRouter creates a configured http.ServeMux from the service layer:

	mux := router.NewRouter(router.Deps{
		Verifier: verifier,
		Ballots:  ballots,
		Limiter:  middleware.NewIPLimiter(1, 5),
		Metrics:  m,
		Gatherer: registry,
	})

# Endpoints

Health:

	GET /health

Verification (rate limited per client IP):

	POST /verify/request-otp - Send a one-time code to the voter
	POST /verify/confirm     - Trade the code for a ballot token

Voting (anonymous, token in body, query or X-Ballot-Token):

	GET  /vote/ballot - Open positions and approved candidates
	POST /vote        - Cast all selections in one transaction

Results (sealed until the position's voting window closes):

	GET /positions/{id}/results

Metrics, when a Gatherer is supplied:

	GET /metrics

Every API route is wrapped with request logging and, when Metrics is
set, a latency histogram labelled by route name and status code.
*/
package router
