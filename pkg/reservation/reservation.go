// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package reservation defines the data model for party admission reservations:
// the provisional grants a party leader obtains from a session's beacon host
// before the party actually connects to the session.
package reservation

import (
	"time"

	"github.com/ludare/partybeacon/pkg/utils"
)

// PlayerID is the opaque unique identifier of a player.
type PlayerID string

// PlayerReservation is one reserved admission slot for a single player.
// ElapsedUnregisteredTime is accumulated by the host while the player holds a
// slot but has not yet been observed as a member of the real game session.
type PlayerReservation struct {
	PlayerID                PlayerID `json:"player_id"`
	ValidationToken         string   `json:"validation_token"`
	ElapsedUnregisteredTime float64  `json:"elapsed_unregistered_time"`
}

// NewPlayerReservation creates a slot for the given player with a fresh
// validation token.
func NewPlayerReservation(playerID PlayerID) PlayerReservation {
	return PlayerReservation{
		PlayerID:        playerID,
		ValidationToken: utils.GenerateUUID(),
	}
}

// PartyReservation is the admission grant for a whole party. The leader is
// included in Members. TeamNumber is assigned by the ledger on acceptance.
type PartyReservation struct {
	PartyLeaderID PlayerID            `json:"party_leader_id"`
	Members       []PlayerReservation `json:"members"`
	TeamNumber    int                 `json:"team_number"`
}

// IsValid reports whether the reservation has a leader and at least one member.
func (r PartyReservation) IsValid() bool {
	return r.PartyLeaderID != "" && len(r.Members) > 0
}

// MemberIDs returns the player ids of every member, in member order.
func (r PartyReservation) MemberIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(r.Members))
	for _, m := range r.Members {
		ids = append(ids, m.PlayerID)
	}
	return ids
}

// HasSameMembers reports whether the other reservation covers the identical
// set of player ids, ignoring order.
func (r PartyReservation) HasSameMembers(other PartyReservation) bool {
	return utils.HasSameElement(r.MemberIDs(), other.MemberIDs())
}

// ContainsMember reports whether playerID holds a slot in this reservation.
func (r PartyReservation) ContainsMember(playerID PlayerID) bool {
	for _, m := range r.Members {
		if m.PlayerID == playerID {
			return true
		}
	}
	return false
}

// RefreshTokens replaces every member's validation token, used when a
// reconnecting leader re-submits an already accepted reservation.
func (r *PartyReservation) RefreshTokens() {
	for i := range r.Members {
		r.Members[i].ValidationToken = utils.GenerateUUID()
	}
}

// NewPartyReservation builds a reservation for a leader and their party
// members. The leader is prepended if not already present in members.
func NewPartyReservation(leaderID PlayerID, memberIDs []PlayerID) PartyReservation {
	res := PartyReservation{PartyLeaderID: leaderID}
	if !utils.Contains(memberIDs, leaderID) {
		res.Members = append(res.Members, NewPlayerReservation(leaderID))
	}
	for _, id := range memberIDs {
		res.Members = append(res.Members, NewPlayerReservation(id))
	}
	return res
}

// EmptyServerReservation carries the one-time configuration payload used to
// claim an idle server. A ledger accepts configuration at most once.
type EmptyServerReservation struct {
	PlaylistID  string `json:"playlist_id"`
	MakePrivate bool   `json:"make_private"`
}

// Timeouts groups the eviction deadlines the host sweep enforces per player.
type Timeouts struct {
	Session       time.Duration
	TravelSession time.Duration
}
