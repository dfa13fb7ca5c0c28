// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package host

import (
	"time"

	"github.com/ludare/partybeacon/pkg/beacon"
	"github.com/ludare/partybeacon/pkg/reservation"
)

// sweep is the once-per-tick liveness pass. Reservations whose owning beacon
// connection is still live get their timers reset; everyone else accumulates
// unregistered time until they are either observed in the real session or
// evicted. Evictions are applied after the full pass so the reservation list
// is never mutated while being walked.
func (h *Host) sweep(now time.Time) {
	elapsed := now.Sub(h.lastSweep).Seconds()
	h.lastSweep = now

	evict := h.pool.IDs.Get()[:0]

	for _, res := range h.led.Reservations() {
		if h.hasLiveConn(res.PartyLeaderID) {
			// Grace period while the leader's connection is attached.
			h.led.ResetPartyTimers(res.PartyLeaderID)
			continue
		}
		for _, member := range res.Members {
			id := member.PlayerID
			if h.mem.IsSessionOwner(id) {
				// The session's original owner is never evicted.
				h.led.ResetPlayerTimer(id)
				h.led.ClearPendingJoin(id)
				continue
			}
			if h.mem.IsSessionMember(id) {
				h.led.ResetPlayerTimer(id)
				h.led.ClearPendingJoin(id)
				continue
			}
			timeout := h.cfg.Timeouts.Session
			if h.led.IsPendingJoin(id) {
				timeout = h.cfg.Timeouts.TravelSession
			}
			if h.led.AccruePlayerTime(id, elapsed) > timeout.Seconds() {
				evict = append(evict, id)
			}
		}
	}

	for _, id := range evict {
		if h.led.RemovePlayer(id) {
			h.log.WithField("player", id).Info("evicting unregistered player")
			if h.metrics != nil {
				h.metrics.SweepEviction(h.cfg.SessionID)
			}
			h.afterLedgerChange()
		}
	}
	h.pool.IDs.Put(evict)

	h.expireProceedGates(now)
}

func (h *Host) hasLiveConn(leaderID reservation.PlayerID) bool {
	for _, hc := range h.conns {
		if hc.leaderID == leaderID {
			return true
		}
	}
	return false
}

// expireProceedGates tells reconnected parties whose proceed gate was never
// granted that the wait is over.
func (h *Host) expireProceedGates(now time.Time) {
	for _, hc := range h.conns {
		if hc.proceedGranted || hc.proceedDeadline.IsZero() || now.Before(hc.proceedDeadline) {
			continue
		}
		hc.proceedDeadline = time.Time{}
		env, _ := beacon.Wrap(beacon.MsgProceedTimeout, nil)
		h.send(hc, env)
	}
}
