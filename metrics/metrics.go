// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes Prometheus instruments for the ballot protocol.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeInvalid     = "invalid_state"
	OutcomeRejected    = "unauthorized"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

type Metrics struct {
	otpRequests      *prometheus.CounterVec
	otpConfirmations *prometheus.CounterVec
	ballotsIssued    prometheus.Counter
	castAttempts     *prometheus.CounterVec
	votesRecorded    prometheus.Counter
	deliveryFailures *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all instruments on registry
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		otpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbox_otp_requests_total",
			Help: "OTP requests by outcome",
		}, []string{"outcome"}),
		otpConfirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbox_otp_confirmations_total",
			Help: "OTP confirmation attempts by outcome",
		}, []string{"outcome"}),
		ballotsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_ballots_issued_total",
			Help: "Ballot tokens minted",
		}),
		castAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbox_cast_attempts_total",
			Help: "Vote casting attempts by outcome",
		}, []string{"outcome"}),
		votesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_votes_recorded_total",
			Help: "Vote rows committed",
		}),
		deliveryFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbox_otp_delivery_failures_total",
			Help: "OTP deliveries that failed, by channel",
		}, []string{"channel"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballotbox_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) OTPRequested(outcome string) {
	if m == nil {
		return
	}
	m.otpRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OTPConfirmed(outcome string) {
	if m == nil {
		return
	}
	m.otpConfirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BallotIssued() {
	if m == nil {
		return
	}
	m.ballotsIssued.Inc()
}

// CastAttempted records one cast; votes is the number of rows committed
func (m *Metrics) CastAttempted(outcome string, votes int) {
	if m == nil {
		return
	}
	m.castAttempts.WithLabelValues(outcome).Inc()
	if votes > 0 {
		m.votesRecorded.Add(float64(votes))
	}
}

func (m *Metrics) DeliveryFailed(channel string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObserveHTTP(route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, code).Observe(seconds)
}
