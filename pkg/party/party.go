// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package party exposes the party-lifecycle collaborator the matchmaking
// orchestrator consumes: who leads the party, who is in it, and the
// join/leave/promotion events that invalidate in-flight matchmaking.
package party

import (
	"sync"

	"github.com/ludare/partybeacon/pkg/reservation"
)

// Roster answers the current composition of the local player's party.
type Roster interface {
	LeaderID() reservation.PlayerID
	MemberIDs() []reservation.PlayerID
	// IsPersistentParty reports whether the identified party is the party
	// the local player persists in across sessions.
	IsPersistentParty(partyID string) bool
}

// Listener receives party lifecycle events. Callbacks may be nil.
type Listener struct {
	OnPartyJoined    func(partyID string)
	OnPartyLeft      func(partyID string)
	OnMemberLeft     func(partyID string, memberID reservation.PlayerID)
	OnMemberPromoted func(partyID string, newLeaderID reservation.PlayerID)
}

// Source is the event feed. Subscribers must call the returned unsubscribe in
// their teardown path.
type Source interface {
	Subscribe(l Listener) (unsubscribe func())
}

// Local is an in-process party implementation for the daemon and for tests.
// It is both a Roster and a Source.
type Local struct {
	mu      sync.Mutex
	partyID string
	leader  reservation.PlayerID
	members []reservation.PlayerID
	seq     int
	subs    map[int]Listener
}

func NewLocal(partyID string, leader reservation.PlayerID) *Local {
	return &Local{
		partyID: partyID,
		leader:  leader,
		members: []reservation.PlayerID{leader},
		subs:    make(map[int]Listener),
	}
}

func (p *Local) LeaderID() reservation.PlayerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leader
}

func (p *Local) MemberIDs() []reservation.PlayerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]reservation.PlayerID, len(p.members))
	copy(ids, p.members)
	return ids
}

func (p *Local) IsPersistentParty(partyID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return partyID == p.partyID
}

func (p *Local) Subscribe(l Listener) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := p.seq
	p.subs[id] = l
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// AddMember grows the party.
func (p *Local) AddMember(id reservation.PlayerID) {
	p.mu.Lock()
	for _, m := range p.members {
		if m == id {
			p.mu.Unlock()
			return
		}
	}
	p.members = append(p.members, id)
	partyID := p.partyID
	subs := p.listeners()
	p.mu.Unlock()

	for _, l := range subs {
		if l.OnPartyJoined != nil {
			l.OnPartyJoined(partyID)
		}
	}
}

// RemoveMember shrinks the party and emits member-left.
func (p *Local) RemoveMember(id reservation.PlayerID) {
	p.mu.Lock()
	kept := p.members[:0]
	for _, m := range p.members {
		if m != id {
			kept = append(kept, m)
		}
	}
	p.members = kept
	partyID := p.partyID
	subs := p.listeners()
	p.mu.Unlock()

	for _, l := range subs {
		if l.OnMemberLeft != nil {
			l.OnMemberLeft(partyID, id)
		}
	}
}

// Leave dissolves the local player's membership and emits party-left.
func (p *Local) Leave() {
	p.mu.Lock()
	partyID := p.partyID
	subs := p.listeners()
	p.mu.Unlock()

	for _, l := range subs {
		if l.OnPartyLeft != nil {
			l.OnPartyLeft(partyID)
		}
	}
}

// PromoteLeader hands leadership to a member and emits member-promoted.
func (p *Local) PromoteLeader(id reservation.PlayerID) {
	p.mu.Lock()
	p.leader = id
	partyID := p.partyID
	subs := p.listeners()
	p.mu.Unlock()

	for _, l := range subs {
		if l.OnMemberPromoted != nil {
			l.OnMemberPromoted(partyID, id)
		}
	}
}

// listeners must be called with the lock held.
func (p *Local) listeners() []Listener {
	subs := make([]Listener, 0, len(p.subs))
	for _, l := range p.subs {
		subs = append(subs, l)
	}
	return subs
}
