// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/handlers"
	"github.com/danielhkuo/ballotbox/metrics"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/verify"
)

// Deps are the services the routes are served from.
// Limiter, Metrics and Gatherer may be nil.
type Deps struct {
	Verifier *verify.Service
	Ballots  *ballot.Service
	Limiter  *middleware.IPLimiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	verifyHandler := handlers.NewVerifyHandler(d.Verifier)
	voteHandler := handlers.NewVoteHandler(d.Ballots)
	resultsHandler := handlers.NewResultsHandler(d.Ballots)

	route := func(name string, h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.WithMetrics(d.Metrics, name, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Voter verification (rate limited per IP)
	mux.HandleFunc("POST /verify/request-otp", route("request_otp", middleware.RateLimit(d.Limiter, verifyHandler.RequestOTP)))
	mux.HandleFunc("POST /verify/confirm", route("confirm_otp", middleware.RateLimit(d.Limiter, verifyHandler.Confirm)))

	// Anonymous voting, authorized by the ballot token only
	mux.HandleFunc("GET /vote/ballot", route("get_ballot", voteHandler.GetBallot))
	mux.HandleFunc("POST /vote", route("cast_vote", voteHandler.Cast))

	// Results (sealed until voting closes)
	mux.HandleFunc("GET /positions/{id}/results", route("results", resultsHandler.GetResults))

	if d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ballotbox API v1"))
	})

	return mux
}
