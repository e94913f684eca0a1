// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Wrap handlers with request logging and a latency histogram:

	mux.HandleFunc("POST /vote", middleware.WithLogging(
		middleware.WithMetrics(m, "cast_vote", handler)))

Logs method and path at start and status and duration_ms on completion.
WithMetrics is a no-op when m is nil.

# Throttling

	limiter := middleware.NewIPLimiter(1, 5) // 1 request/s, burst 5
	handler = middleware.RateLimit(limiter, handler)

One token bucket per client IP; idle buckets are dropped after ten minutes.
A nil limiter or a non-positive rate allows everything.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, OPTIONS with headers Content-Type,
Authorization and X-Ballot-Token.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.WriteError(w, err) // apperr kind decides the status

Parse JSON request bodies:

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

WithClientIP resolves the client address once per request and ClientIP
reads it back:

	handler := middleware.WithClientIP(cfg.TrustProxyHeaders, mux)
	ip := middleware.ClientIP(r)

With trustProxy false the address is always the socket peer (RemoteIP).
With it true, X-Forwarded-For and then X-Real-IP are used (GetClientIP).
ClientIP keys the per-IP throttle and the salted IP hash in the audit trail.
*/
package middleware
