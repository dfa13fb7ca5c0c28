// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type prometheusMetrics struct {
	reservationResults prometheus.CounterVec
	sweepEvictions     prometheus.CounterVec
	reservedSlots      prometheus.GaugeVec
	matchmakingElapsed prometheus.HistogramVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	reservationResults := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_reservation_results",
			Help: "A counter of reservation request outcomes per session",
		}, []string{"session", "result"})

	sweepEvictions := factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_sweep_evictions",
			Help: "A counter of players evicted by the liveness sweep per session",
		}, []string{"session"})

	reservedSlots := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "beacon_reserved_slots",
			Help: "A gauge of consumed admission slots per session",
		}, []string{"session"})

	//nolint:promlinter
	matchmakingElapsed := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_matchmaking_elapsed_time_ms",
			Help:    "A histogram of matchmaking attempt durations in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"policy", "result"})

	return prometheusMetrics{
		reservationResults: *reservationResults,
		sweepEvictions:     *sweepEvictions,
		reservedSlots:      *reservedSlots,
		matchmakingElapsed: *matchmakingElapsed,
	}
}

func (metrics prometheusMetrics) ReservationResult(sessionID string, result string) {
	metrics.reservationResults.With(prometheus.Labels{"session": sessionID, "result": result}).Add(float64(1))
}

func (metrics prometheusMetrics) SweepEviction(sessionID string) {
	metrics.sweepEvictions.With(prometheus.Labels{"session": sessionID}).Add(float64(1))
}

func (metrics prometheusMetrics) ReservedSlots(sessionID string, consumed int) {
	metrics.reservedSlots.With(prometheus.Labels{"session": sessionID}).Set(float64(consumed))
}

func (metrics prometheusMetrics) MatchmakingElapsedMs(policy string, result string, elapsedTime time.Duration) {
	metrics.matchmakingElapsed.With(prometheus.Labels{"policy": policy, "result": result}).Observe(float64(elapsedTime.Milliseconds()))
}
