// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package joinhelper composes "reserve a slot on the beacon" and "join the
// actual session through the directory" into one two-phase operation with a
// single completion callback.
package joinhelper

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/beacon"
	beaconclient "github.com/ludare/partybeacon/pkg/beacon/client"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/envelope"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/runtime"
)

// State is the helper's position in the two-phase join.
type State int

const (
	StateNotJoining State = iota
	StateRequestingReservation
	StateFailedReservation
	StateWaitingOnGame
	StateAttemptingJoin
	StateJoiningSession
	StateFailedJoin
)

func (s State) String() string {
	switch s {
	case StateNotJoining:
		return "NotJoining"
	case StateRequestingReservation:
		return "RequestingReservation"
	case StateFailedReservation:
		return "FailedReservation"
	case StateWaitingOnGame:
		return "WaitingOnGame"
	case StateAttemptingJoin:
		return "AttemptingJoin"
	case StateJoiningSession:
		return "JoiningSession"
	case StateFailedJoin:
		return "FailedJoin"
	}
	return "Unknown"
}

// Result is the single terminal outcome of one join attempt.
type Result int

const (
	ResultSuccess Result = iota
	ResultReservationFailed
	ResultJoinFailed
	ResultCanceled
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultReservationFailed:
		return "ReservationFailure"
	case ResultJoinFailed:
		return "JoinFailure"
	case ResultCanceled:
		return "Canceled"
	}
	return "Unknown"
}

// DialerFactory maps a directory search result onto the dialer reaching its
// beacon endpoint.
type DialerFactory func(result directory.SearchResult) beacon.Dialer

// Callbacks are the helper's upward notifications, all on the owning loop.
// OnComplete fires exactly once per attempt.
type Callbacks struct {
	OnStateChanged func(from, to State)
	OnComplete     func(result Result)
}

// Helper drives one reserve-then-join attempt at a time. The beacon client it
// spawns is exclusively owned and destroyed at the end of every attempt,
// successful or not.
type Helper struct {
	loop      *runtime.Loop
	dir       directory.SessionDirectory
	dialers   DialerFactory
	clientCfg beaconclient.Config
	cbs       Callbacks
	log       *logrus.Entry

	// loop-owned state
	state      State
	chosen     directory.SearchResult
	leaderID   reservation.PlayerID
	cl         *beaconclient.Client
	joinCancel context.CancelFunc
	completed  bool
	canceling  bool
}

func New(loop *runtime.Loop, dir directory.SessionDirectory, dialers DialerFactory, clientCfg beaconclient.Config, cbs Callbacks) *Helper {
	return &Helper{
		loop:      loop,
		dir:       dir,
		dialers:   dialers,
		clientCfg: clientCfg,
		cbs:       cbs,
		log:       logrus.WithField("component", "join-helper"),
		state:     StateNotJoining,
	}
}

// State returns the current state; call from the owning loop only.
func (h *Helper) State() State {
	return h.state
}

// ReserveSession spawns a beacon client and submits the party's reservation
// against the chosen session. emptyCfg is non-nil only when claiming an idle
// server.
func (h *Helper) ReserveSession(scope *envelope.Scope, result directory.SearchResult, res reservation.PartyReservation, emptyCfg *reservation.EmptyServerReservation) {
	h.loop.Post(func() {
		if !h.beginAttempt() {
			return
		}
		h.chosen = result
		h.leaderID = res.PartyLeaderID
		h.setState(StateRequestingReservation)

		target := beaconclient.Target{SessionID: result.SessionID, Dial: h.dialers(result)}
		h.cl = beaconclient.New(h.loop, h.clientCfg, beaconclient.Callbacks{
			OnComplete: h.onReservationComplete,
		})
		if emptyCfg != nil {
			h.cl.RequestEmptyServerReservation(scope, target, res, *emptyCfg)
			return
		}
		h.cl.RequestReservation(scope, target, res)
	})
}

// SkipReservation is used when a different party member already holds the
// reservation: the helper moves straight to WaitingOnGame without touching
// the network.
func (h *Helper) SkipReservation(result directory.SearchResult) {
	h.loop.Post(func() {
		if !h.beginAttempt() {
			return
		}
		h.chosen = result
		h.setState(StateWaitingOnGame)
	})
}

// JoinReservedSession performs the actual directory join. Only valid from
// WaitingOnGame.
func (h *Helper) JoinReservedSession(scope *envelope.Scope) {
	h.loop.Post(func() {
		if h.state != StateWaitingOnGame {
			scope.Log.WithField("state", h.state.String()).Warn("join requested outside WaitingOnGame")
			h.complete(ResultJoinFailed)
			return
		}
		h.setState(StateAttemptingJoin)

		joinCtx, cancel := context.WithCancel(context.Background())
		h.joinCancel = cancel
		chosen := h.chosen
		go func() {
			err := h.dir.JoinSession(joinCtx, chosen)
			h.loop.Post(func() {
				if h.state != StateAttemptingJoin {
					return
				}
				h.destroyClient()
				if err != nil {
					scope.Log.WithError(err).Info("session join failed")
					h.setState(StateFailedJoin)
					h.complete(ResultJoinFailed)
					return
				}
				h.setState(StateJoiningSession)
				h.complete(ResultSuccess)
			})
		}()
	})
}

// CancelReservation tears the attempt down from any point before
// JoiningSession. When no beacon request is actually in flight the canceled
// outcome is synthesized locally.
func (h *Helper) CancelReservation() {
	h.loop.Post(func() {
		switch h.state {
		case StateRequestingReservation:
			// The beacon client owns the in-flight request; its canceled
			// completion drives ours.
			h.canceling = true
			h.cl.CancelReservation(h.leaderID)
		case StateWaitingOnGame:
			if h.cl != nil {
				// Reservation already granted: tell the host, then finish
				// locally since the request round trip is long over.
				h.cl.CancelReservation(h.leaderID)
			}
			h.destroyClient()
			h.finishCancel()
		case StateAttemptingJoin:
			if h.joinCancel != nil {
				h.joinCancel()
				h.joinCancel = nil
			}
			h.destroyClient()
			h.finishCancel()
		case StateNotJoining, StateFailedReservation, StateFailedJoin, StateJoiningSession:
			h.destroyClient()
			h.finishCancel()
		}
	})
}

// beginAttempt enforces the re-entrancy rule: stale terminal states are
// implicitly reset, a genuinely mid-flight attempt rejects the newcomer with
// an immediate failure rather than silently dropping either one.
func (h *Helper) beginAttempt() bool {
	switch h.state {
	case StateFailedReservation, StateFailedJoin, StateJoiningSession:
		h.reset()
	case StateNotJoining:
	default:
		h.log.WithField("state", h.state.String()).Warn("join helper busy")
		if h.cbs.OnComplete != nil {
			h.cbs.OnComplete(ResultReservationFailed)
		}
		return false
	}
	h.completed = false
	h.canceling = false
	return true
}

func (h *Helper) onReservationComplete(result reservation.Result) {
	if h.canceling || result == reservation.ReservationRequestCanceled {
		h.destroyClient()
		h.finishCancel()
		return
	}
	if h.state != StateRequestingReservation {
		return
	}
	if result.IsSuccess() {
		h.setState(StateWaitingOnGame)
		return
	}
	h.log.WithField("result", result.String()).Info("reservation refused")
	h.destroyClient()
	h.setState(StateFailedReservation)
	h.complete(ResultReservationFailed)
}

// finishCancel always reports the canceled outcome, even when the underlying
// attempt already reached a terminal state: the caller driving a teardown
// chain needs a completion to continue on.
func (h *Helper) finishCancel() {
	h.setState(StateNotJoining)
	h.completed = true
	if h.cbs.OnComplete != nil {
		h.cbs.OnComplete(ResultCanceled)
	}
}

func (h *Helper) setState(to State) {
	from := h.state
	if from == to {
		return
	}
	h.state = to
	if h.cbs.OnStateChanged != nil {
		h.cbs.OnStateChanged(from, to)
	}
}

func (h *Helper) complete(result Result) {
	if h.completed {
		return
	}
	h.completed = true
	if h.cbs.OnComplete != nil {
		h.cbs.OnComplete(result)
	}
}

func (h *Helper) destroyClient() {
	if h.cl != nil {
		h.cl.Close()
		h.cl = nil
	}
}

func (h *Helper) reset() {
	h.destroyClient()
	if h.joinCancel != nil {
		h.joinCancel()
		h.joinCancel = nil
	}
	h.state = StateNotJoining
}
