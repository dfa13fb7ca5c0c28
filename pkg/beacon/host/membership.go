// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package host

import (
	"sync"

	"github.com/ludare/partybeacon/pkg/reservation"
)

// MemberRegistry is an in-process Membership implementation for the beacon
// daemon and for tests. The game layer registers players as they actually
// join the session.
type MemberRegistry struct {
	mu      sync.Mutex
	owner   reservation.PlayerID
	members map[reservation.PlayerID]struct{}
}

func NewMemberRegistry(owner reservation.PlayerID) *MemberRegistry {
	return &MemberRegistry{
		owner:   owner,
		members: make(map[reservation.PlayerID]struct{}),
	}
}

func (m *MemberRegistry) Register(id reservation.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[id] = struct{}{}
}

func (m *MemberRegistry) Unregister(id reservation.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
}

func (m *MemberRegistry) IsSessionMember(id reservation.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[id]
	return ok
}

func (m *MemberRegistry) IsSessionOwner(id reservation.PlayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner != "" && m.owner == id
}
