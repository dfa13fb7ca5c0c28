// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package reservation

import (
	"gopkg.in/typ.v4/sync2"
)

// Pool holds reusable member slices to reduce garbage collector pressure on the
// host's per-tick sweep.
type Pool struct {
	Members *sync2.Pool[[]PlayerReservation]
	IDs     *sync2.Pool[[]PlayerID]
}

func NewPool() *Pool {
	return &Pool{
		Members: &sync2.Pool[[]PlayerReservation]{
			New: func() []PlayerReservation {
				return make([]PlayerReservation, 0, 12)
			},
		},
		IDs: &sync2.Pool[[]PlayerID]{
			New: func() []PlayerID {
				return make([]PlayerID, 0, 12)
			},
		},
	}
}
