// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package party

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ludare/partybeacon/pkg/reservation"
)

func TestLocal_RosterMembership(t *testing.T) {
	p := NewLocal("party-1", "alpha")
	p.AddMember("bravo")
	p.AddMember("bravo") // idempotent

	assert.Equal(t, reservation.PlayerID("alpha"), p.LeaderID())
	assert.Equal(t, []reservation.PlayerID{"alpha", "bravo"}, p.MemberIDs())
	assert.True(t, p.IsPersistentParty("party-1"))
	assert.False(t, p.IsPersistentParty("party-2"))

	p.RemoveMember("bravo")
	assert.Equal(t, []reservation.PlayerID{"alpha"}, p.MemberIDs())
}

func TestLocal_EventsReachSubscribers(t *testing.T) {
	p := NewLocal("party-1", "alpha")

	var joined, left []string
	var removed []reservation.PlayerID
	var promoted []reservation.PlayerID
	unsubscribe := p.Subscribe(Listener{
		OnPartyJoined: func(partyID string) { joined = append(joined, partyID) },
		OnPartyLeft:   func(partyID string) { left = append(left, partyID) },
		OnMemberLeft: func(partyID string, memberID reservation.PlayerID) {
			removed = append(removed, memberID)
		},
		OnMemberPromoted: func(partyID string, newLeaderID reservation.PlayerID) {
			promoted = append(promoted, newLeaderID)
		},
	})

	p.AddMember("bravo")
	p.PromoteLeader("bravo")
	p.RemoveMember("alpha")
	p.Leave()

	assert.Equal(t, []string{"party-1"}, joined)
	assert.Equal(t, []string{"party-1"}, left)
	assert.Equal(t, []reservation.PlayerID{"alpha"}, removed)
	assert.Equal(t, []reservation.PlayerID{"bravo"}, promoted)
	assert.Equal(t, reservation.PlayerID("bravo"), p.LeaderID())

	unsubscribe()
	p.AddMember("charlie")
	assert.Equal(t, []string{"party-1"}, joined)
}

func TestLocal_NilCallbacksAreSkipped(t *testing.T) {
	p := NewLocal("party-1", "alpha")
	unsubscribe := p.Subscribe(Listener{})
	defer unsubscribe()

	p.AddMember("bravo")
	p.PromoteLeader("bravo")
	p.Leave()
}
