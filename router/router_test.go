// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/ballotbox/audit"
	"github.com/danielhkuo/ballotbox/ballot"
	"github.com/danielhkuo/ballotbox/clock"
	"github.com/danielhkuo/ballotbox/metrics"
	"github.com/danielhkuo/ballotbox/middleware"
	"github.com/danielhkuo/ballotbox/notify"
	"github.com/danielhkuo/ballotbox/testutil"
	"github.com/danielhkuo/ballotbox/verify"
	"github.com/danielhkuo/ballotbox/window"
)

func newTestRouter(t *testing.T, limiter *middleware.IPLimiter) *http.ServeMux {
	t.Helper()

	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	c := clock.System()
	trail := audit.NewTrail(conn, c, nil)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	dispatcher := notify.NewDispatcher(notify.Config{Workers: 1}, nil, notify.NewConsoleChannel(nil))
	dispatcher.Start()
	t.Cleanup(dispatcher.Close)

	verifier := verify.NewService(conn, c, dispatcher, ballot.NewIssuer(c, cfg.BallotTTL), trail, m, verify.Options{
		BcryptCost: cfg.BcryptCost,
		IPSalt:     cfg.IPHashSalt,
	})

	return NewRouter(Deps{
		Verifier: verifier,
		Ballots:  ballot.NewService(conn, window.NewResolver(c), trail, m),
		Limiter:  limiter,
		Metrics:  m,
		Gatherer: registry,
	})
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	expected := "ballotbox API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestRouteExistence(t *testing.T) {
	mux := newTestRouter(t, nil)

	// 400 and 404 are valid handler responses; 405 means the route is missing
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/"},
		{"POST", "/verify/request-otp"},
		{"POST", "/verify/confirm"},
		{"GET", "/vote/ballot"},
		{"POST", "/vote"},
		{"GET", "/positions/test-id/results"},
		{"GET", "/metrics"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s returned 405, expected route handler to exist", tc.method, tc.path)
			}
		})
	}
}

func TestSpecificMethodRouting(t *testing.T) {
	mux := newTestRouter(t, nil)

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"POST to health endpoint", "POST", "/health", http.StatusMethodNotAllowed},
		{"PUT to confirm endpoint", "PUT", "/verify/confirm", http.StatusMethodNotAllowed},
		{"DELETE to vote endpoint", "DELETE", "/vote", http.StatusMethodNotAllowed},
		{"POST to results endpoint", "POST", "/positions/test-id/results", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tc.expectedStatus {
				t.Errorf("Expected %d for %s %s, got %d", tc.expectedStatus, tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestPathParameterExtraction(t *testing.T) {
	mux := newTestRouter(t, nil)

	req := httptest.NewRequest("GET", "/positions/missing-position/results", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	// The id reaches the handler, which reports the position as unknown
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Position not found") {
		t.Errorf("Expected position lookup 404, got %d. Body: %s", w.Code, w.Body.String())
	}
}

func TestVerifyRoutesAreRateLimited(t *testing.T) {
	mux := newTestRouter(t, middleware.NewIPLimiter(0.001, 1))

	send := func() int {
		req := httptest.NewRequest("POST", "/verify/request-otp", strings.NewReader(`{"reg_no":"NOPE"}`))
		req.RemoteAddr = "203.0.113.7:4000"
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(); code != http.StatusNotFound {
		t.Errorf("Expected first request to reach the handler, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 on second request, got %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestRouter(t, nil)

	// Generate one observation
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/vote/ballot", nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `ballotbox_http_request_duration_seconds_count{code="400",route="get_ballot"} 1`) {
		t.Errorf("Expected request latency series, got:\n%s", w.Body.String())
	}
}
