// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package ledger

import (
	"github.com/ludare/partybeacon/pkg/reservation"
)

// Configure applies the one-time empty-server configuration. Only the first
// call succeeds; every later attempt is rejected.
func (l *Ledger) Configure(cfg reservation.EmptyServerReservation) bool {
	if l.configured {
		return false
	}
	l.configured = true
	l.playlistID = cfg.PlaylistID
	l.private = cfg.MakePrivate
	return true
}

// NeedsConfiguration reports whether the ledger belongs to an idle server
// that has not yet been claimed.
func (l *Ledger) NeedsConfiguration() bool {
	return l.needsConfig && !l.configured
}

// Configured reports whether Configure has been applied.
func (l *Ledger) Configured() bool {
	return l.configured
}

// PlaylistID returns the playlist applied by Configure, empty before then.
func (l *Ledger) PlaylistID() string {
	return l.playlistID
}

// IsPrivate reports whether the configuring reservation asked for a private
// session.
func (l *Ledger) IsPrivate() bool {
	return l.private
}

// MarkPendingJoin records that the given players hold reservations but have
// not yet been observed in the live session.
func (l *Ledger) MarkPendingJoin(ids []reservation.PlayerID) {
	for _, id := range ids {
		l.pendingJoin[id] = struct{}{}
	}
}

// ClearPendingJoin removes a player from the pending-join set once they are
// observed as a real session member.
func (l *Ledger) ClearPendingJoin(id reservation.PlayerID) {
	delete(l.pendingJoin, id)
}

// IsPendingJoin reports whether the player still owes the session a join.
func (l *Ledger) IsPendingJoin(id reservation.PlayerID) bool {
	_, ok := l.pendingJoin[id]
	return ok
}

// Reservations returns a view of the current reservations. Callers must not
// mutate the returned slice; all mutation goes through ledger methods.
func (l *Ledger) Reservations() []reservation.PartyReservation {
	return l.reservations
}

// ResetPartyTimers zeroes the unregistered time of every member of the
// reservation owned by leaderID, the grace period while the owning beacon
// connection is live.
func (l *Ledger) ResetPartyTimers(leaderID reservation.PlayerID) {
	idx := l.GetExistingReservation(leaderID)
	if idx < 0 {
		return
	}
	for i := range l.reservations[idx].Members {
		l.reservations[idx].Members[i].ElapsedUnregisteredTime = 0
	}
}

// ResetPlayerTimer zeroes one player's unregistered time.
func (l *Ledger) ResetPlayerTimer(playerID reservation.PlayerID) {
	for i := range l.reservations {
		for j := range l.reservations[i].Members {
			if l.reservations[i].Members[j].PlayerID == playerID {
				l.reservations[i].Members[j].ElapsedUnregisteredTime = 0
				return
			}
		}
	}
}

// AccruePlayerTime adds elapsed seconds to one player's unregistered time and
// returns the new total.
func (l *Ledger) AccruePlayerTime(playerID reservation.PlayerID, seconds float64) float64 {
	for i := range l.reservations {
		for j := range l.reservations[i].Members {
			if l.reservations[i].Members[j].PlayerID == playerID {
				l.reservations[i].Members[j].ElapsedUnregisteredTime += seconds
				return l.reservations[i].Members[j].ElapsedUnregisteredTime
			}
		}
	}
	return 0
}

// RefreshReservation refreshes the validation tokens of an existing
// reservation and re-marks all its members pending join. Used on the
// duplicate/reconnect path; it never allocates a second reservation.
func (l *Ledger) RefreshReservation(idx int) {
	l.reservations[idx].RefreshTokens()
	l.MarkPendingJoin(l.reservations[idx].MemberIDs())
}
