// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type BeaconMetrics interface {
	ReservationResult(sessionID string, result string)
	SweepEviction(sessionID string)
	ReservedSlots(sessionID string, consumed int)
	MatchmakingElapsedMs(policy string, result string, elapsedTime time.Duration)
}

func NewMetrics(registry *prometheus.Registry) BeaconMetrics {
	return setupPrometheusMetrics(registry)
}
