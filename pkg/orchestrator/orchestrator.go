// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package orchestrator ties party lifecycle, matchmaking policies, and the
// post-match reconnect gate together. At most one policy runs at a time; a
// successful policy does not travel immediately but first re-reserves against
// the chosen session's host and waits for its explicit permission to proceed.
package orchestrator

import (
	"time"

	"github.com/sirupsen/logrus"

	beaconclient "github.com/ludare/partybeacon/pkg/beacon/client"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/envelope"
	"github.com/ludare/partybeacon/pkg/joinhelper"
	"github.com/ludare/partybeacon/pkg/metrics"
	"github.com/ludare/partybeacon/pkg/party"
	"github.com/ludare/partybeacon/pkg/policy"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/runtime"
)

// State is the orchestrator's position in the matchmaking flow.
type State int

const (
	StateIdle State = iota
	StateMatchmaking
	StateReconnecting
	StateWaitingToProceed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateMatchmaking:
		return "Matchmaking"
	case StateReconnecting:
		return "Reconnecting"
	case StateWaitingToProceed:
		return "WaitingToProceed"
	}
	return "Unknown"
}

// Config carries the reconnect-gate timing.
type Config struct {
	// ReconnectDelay is how long after a policy success the re-reservation
	// against the chosen host waits. Party followers converge on the target
	// at different speeds; the delay gives the initial reservation time to
	// propagate.
	ReconnectDelay time.Duration
	ClientConfig   beaconclient.Config
}

// Callbacks are the orchestrator's upward notifications, all on the owning
// loop.
type Callbacks struct {
	// OnMatchmakingComplete reports every policy outcome, including the
	// ones that do not lead to travel.
	OnMatchmakingComplete func(result policy.Result)
	// OnReadyToTravel fires once the chosen host has signaled that the
	// party may proceed into the session.
	OnReadyToTravel func(chosen directory.SearchResult)
	// OnTravelFailed fires when the reconnect or the proceed gate fails
	// after a successful policy.
	OnTravelFailed func(chosen directory.SearchResult)
}

// Orchestrator holds at most one active policy and owns the reconnect client
// spawned after a success.
type Orchestrator struct {
	loop    *runtime.Loop
	roster  party.Roster
	dialers joinhelper.DialerFactory
	cfg     Config
	cbs     Callbacks
	met     metrics.BeaconMetrics
	log     *logrus.Entry

	unsubscribe func()

	// loop-owned state
	state      State
	scope      *envelope.Scope
	active     policy.Policy
	activeName string
	chosen     directory.SearchResult
	reconnect  *beaconclient.Client
	timer      *runtime.Handle
	startedAt  time.Time
	canceling  bool
}

func New(loop *runtime.Loop, roster party.Roster, events party.Source, dialers joinhelper.DialerFactory, cfg Config, cbs Callbacks, met metrics.BeaconMetrics) *Orchestrator {
	o := &Orchestrator{
		loop:    loop,
		roster:  roster,
		dialers: dialers,
		cfg:     cfg,
		cbs:     cbs,
		met:     met,
		log:     logrus.WithField("component", "orchestrator"),
		state:   StateIdle,
	}
	if events != nil {
		o.unsubscribe = events.Subscribe(party.Listener{
			OnPartyLeft:      o.onPartyLeft,
			OnMemberPromoted: o.onMemberPromoted,
		})
	}
	return o
}

// State returns the current state; call from the owning loop only.
func (o *Orchestrator) State() State {
	return o.state
}

// StartMatchmaking hands the policy to the orchestrator and starts it. The
// policy must have been constructed with OnPolicyComplete as its completion
// callback.
func (o *Orchestrator) StartMatchmaking(scope *envelope.Scope, p policy.Policy) {
	o.loop.Post(func() {
		if o.state != StateIdle {
			scope.Log.WithField("state", o.state.String()).Warn("matchmaking already in progress")
			return
		}
		o.state = StateMatchmaking
		o.scope = scope
		o.active = p
		o.activeName = p.Name()
		o.canceling = false
		o.startedAt = time.Now()
		scope.Log.WithField("policy", p.Name()).Info("matchmaking started")
		p.StartMatchmaking(scope)
	})
}

// CancelMatchmaking cancels whatever phase is in flight. The flow still ends
// through OnPolicyComplete or the travel callbacks; cancellation never
// abandons a layer mid-flight.
func (o *Orchestrator) CancelMatchmaking() {
	o.loop.Post(func() { o.cancelLocked() })
}

// Close unsubscribes from party events and tears down any active flow.
func (o *Orchestrator) Close() {
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.CancelMatchmaking()
}

// OnPolicyComplete is the completion callback every policy handed to
// StartMatchmaking must be constructed with. It runs on the owning loop.
func (o *Orchestrator) OnPolicyComplete(result policy.Result, chosen *directory.SearchResult) {
	if o.state != StateMatchmaking {
		return
	}
	o.active = nil
	if o.met != nil {
		o.met.MatchmakingElapsedMs(o.activeName, result.String(), time.Since(o.startedAt))
	}
	if o.cbs.OnMatchmakingComplete != nil {
		o.cbs.OnMatchmakingComplete(result)
	}
	if result != policy.ResultSuccess || chosen == nil {
		o.state = StateIdle
		return
	}

	o.chosen = *chosen
	o.state = StateReconnecting
	o.scope.Log.WithField("sessionID", o.chosen.SessionID).Info("match found, scheduling reconnect")
	o.timer = o.loop.Schedule(o.cfg.ReconnectDelay, func() {
		o.timer = nil
		o.beginReconnect()
	})
}

func (o *Orchestrator) onPartyLeft(partyID string) {
	o.loop.Post(func() {
		if o.state == StateIdle {
			return
		}
		if o.roster != nil && !o.roster.IsPersistentParty(partyID) {
			return
		}
		o.log.WithField("partyID", partyID).Info("persistent party left, canceling matchmaking")
		o.cancelLocked()
	})
}

// Leadership changes invalidate an in-flight attempt: only the leader drives
// reservations.
func (o *Orchestrator) onMemberPromoted(partyID string, newLeaderID reservation.PlayerID) {
	o.loop.Post(func() {
		if o.state == StateIdle {
			return
		}
		if o.roster != nil && !o.roster.IsPersistentParty(partyID) {
			return
		}
		o.log.WithFields(logrus.Fields{
			"partyID":     partyID,
			"newLeaderID": string(newLeaderID),
		}).Info("party leadership changed, canceling matchmaking")
		o.cancelLocked()
	})
}

func (o *Orchestrator) cancelLocked() {
	switch o.state {
	case StateIdle:
		return
	case StateMatchmaking:
		if o.canceling {
			return
		}
		o.canceling = true
		if o.active != nil {
			// OnPolicyComplete finishes the cancellation.
			o.active.CancelMatchmaking()
		}
	case StateReconnecting, StateWaitingToProceed:
		o.timer.Cancel()
		o.timer = nil
		o.destroyReconnect()
		chosen := o.chosen
		o.state = StateIdle
		if o.cbs.OnTravelFailed != nil {
			o.cbs.OnTravelFailed(chosen)
		}
	}
}

// beginReconnect re-reserves against the chosen host. A duplicate response is
// the expected success: the party's place is already held.
func (o *Orchestrator) beginReconnect() {
	if o.state != StateReconnecting {
		return
	}
	o.reconnect = beaconclient.New(o.loop, o.cfg.ClientConfig, beaconclient.Callbacks{
		OnComplete:         o.onReconnectComplete,
		OnAllowedToProceed: o.onAllowedToProceed,
		OnProceedTimeout:   o.onProceedTimeout,
		OnConnLost:         o.onConnLost,
	})
	target := beaconclient.Target{SessionID: o.chosen.SessionID, Dial: o.dialers(o.chosen)}
	o.reconnect.Reconnect(o.scope, target, o.roster.LeaderID(), o.roster.MemberIDs())
}

func (o *Orchestrator) onReconnectComplete(result reservation.Result) {
	if o.state != StateReconnecting {
		return
	}
	if !result.IsSuccess() {
		o.scope.Log.WithField("result", result.String()).Info("reconnect rejected")
		o.failTravel()
		return
	}
	// Keep the connection open: the proceed signal arrives unsolicited.
	o.state = StateWaitingToProceed
}

func (o *Orchestrator) onAllowedToProceed() {
	if o.state != StateWaitingToProceed {
		return
	}
	chosen := o.chosen
	o.destroyReconnect()
	o.state = StateIdle
	o.scope.Log.WithField("sessionID", chosen.SessionID).Info("host granted proceed, traveling")
	if o.cbs.OnReadyToTravel != nil {
		o.cbs.OnReadyToTravel(chosen)
	}
}

func (o *Orchestrator) onProceedTimeout() {
	if o.state != StateWaitingToProceed {
		return
	}
	o.scope.Log.Warn("host proceed gate timed out")
	o.failTravel()
}

// A dead beacon connection can never deliver the proceed signal; the wait
// cannot resolve and the travel fails.
func (o *Orchestrator) onConnLost() {
	if o.state != StateWaitingToProceed {
		return
	}
	o.scope.Log.Warn("beacon connection lost while waiting to proceed")
	o.failTravel()
}

func (o *Orchestrator) failTravel() {
	chosen := o.chosen
	o.destroyReconnect()
	o.state = StateIdle
	if o.cbs.OnTravelFailed != nil {
		o.cbs.OnTravelFailed(chosen)
	}
}

func (o *Orchestrator) destroyReconnect() {
	if o.reconnect != nil {
		o.reconnect.Close()
		o.reconnect = nil
	}
}
