// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package host

import (
	"sync"

	"github.com/ludare/partybeacon/pkg/reservation"
)

// Events are the host-side notifications the owning game layer can subscribe
// to. All callbacks fire on the host's event loop; subscribers must not call
// back into the host synchronously and must unsubscribe in their teardown
// path.
type Events struct {
	ReservationChanged   func()
	ReservationsFull     func()
	DuplicateReservation func(res reservation.PartyReservation)
	CancelationReceived  func(leaderID reservation.PlayerID)
}

type notifier struct {
	mu   sync.Mutex
	seq  int
	subs map[int]Events
}

// Subscribe registers event callbacks and returns the matching unsubscribe.
// Unsubscribing twice is a no-op.
func (h *Host) Subscribe(events Events) (unsubscribe func()) {
	n := &h.notifier
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]Events)
	}
	n.seq++
	id := n.seq
	n.subs[id] = events
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) snapshot() []Events {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := make([]Events, 0, len(n.subs))
	for _, e := range n.subs {
		subs = append(subs, e)
	}
	return subs
}

func (n *notifier) reservationChanged() {
	for _, e := range n.snapshot() {
		if e.ReservationChanged != nil {
			e.ReservationChanged()
		}
	}
}

func (n *notifier) reservationsFull() {
	for _, e := range n.snapshot() {
		if e.ReservationsFull != nil {
			e.ReservationsFull()
		}
	}
}

func (n *notifier) duplicateReservation(res reservation.PartyReservation) {
	for _, e := range n.snapshot() {
		if e.DuplicateReservation != nil {
			e.DuplicateReservation(res)
		}
	}
}

func (n *notifier) cancelationReceived(leaderID reservation.PlayerID) {
	for _, e := range n.snapshot() {
		if e.CancelationReceived != nil {
			e.CancelationReceived(leaderID)
		}
	}
}
