package testsetup

import (
	"time"

	"github.com/ludare/partybeacon/pkg/metrics"
)

type stubMetricsCollection struct{}

func (s stubMetricsCollection) ReservationResult(sessionID string, result string) {
}

func (s stubMetricsCollection) SweepEviction(sessionID string) {
}

func (s stubMetricsCollection) ReservedSlots(sessionID string, consumed int) {
}

func (s stubMetricsCollection) MatchmakingElapsedMs(policy string, result string, elapsedTime time.Duration) {
}

func NewMetrics() metrics.BeaconMetrics {
	return stubMetricsCollection{}
}
