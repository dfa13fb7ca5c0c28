// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package searchpass walks the candidates of one directory query in index
// order, attempting a reserve-then-join against each until one of them admits
// the party or all are exhausted. Candidate selection is purely "next
// un-tried"; no scoring happens here.
package searchpass

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	beaconclient "github.com/ludare/partybeacon/pkg/beacon/client"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/envelope"
	"github.com/ludare/partybeacon/pkg/joinhelper"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/runtime"
)

// State is the pass's position in the search workflow.
type State int

const (
	StateNotMatchmaking State = iota
	StateInitialSearch
	StateTestingExistingSessions
	StateCancelingMatchmaking
)

func (s State) String() string {
	switch s {
	case StateNotMatchmaking:
		return "NotMatchmaking"
	case StateInitialSearch:
		return "InitialSearch"
	case StateTestingExistingSessions:
		return "TestingExistingSessions"
	case StateCancelingMatchmaking:
		return "CancelingMatchmaking"
	}
	return "Unknown"
}

// Result is the pass's terminal outcome.
type Result int

const (
	ResultSuccess Result = iota
	ResultNoMatchesAvailable
	ResultCanceled
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultNoMatchesAvailable:
		return "NoMatchesAvailable"
	case ResultCanceled:
		return "Canceled"
	case ResultError:
		return "Error"
	}
	return "Unknown"
}

// Config carries the fixed delays between attempts. ContinueDelay separates
// two candidate attempts; JoinDelay lets a granted reservation settle before
// the directory join.
type Config struct {
	ContinueDelay time.Duration
	JoinDelay     time.Duration
}

// Callbacks: OnComplete fires exactly once per started pass; the chosen
// result is non-nil only on success.
type Callbacks struct {
	OnComplete func(result Result, chosen *directory.SearchResult)
}

// Pass owns the join helper it drives; no network state survives the pass.
type Pass struct {
	loop *runtime.Loop
	dir  directory.SessionDirectory
	cfg  Config
	cbs  Callbacks
	log  *logrus.Entry

	helper *joinhelper.Helper

	// loop-owned state
	state      State
	scope      *envelope.Scope
	results    []directory.SearchResult
	next       int
	res        reservation.PartyReservation
	emptyCfg   *reservation.EmptyServerReservation
	findCancel context.CancelFunc
	timer      *runtime.Handle
	attempting bool
	completed  bool
}

func New(loop *runtime.Loop, dir directory.SessionDirectory, dialers joinhelper.DialerFactory, clientCfg beaconclient.Config, cfg Config, cbs Callbacks) *Pass {
	p := &Pass{
		loop:  loop,
		dir:   dir,
		cfg:   cfg,
		cbs:   cbs,
		log:   logrus.WithField("component", "search-pass"),
		state: StateNotMatchmaking,
	}
	p.helper = joinhelper.New(loop, dir, dialers, clientCfg, joinhelper.Callbacks{
		OnStateChanged: p.onHelperState,
		OnComplete:     p.onHelperComplete,
	})
	return p
}

// State returns the current state; call from the owning loop only.
func (p *Pass) State() State {
	return p.state
}

// Start queries the directory once and begins testing candidates. emptyCfg is
// forwarded to the helper when the pass is claiming idle servers.
func (p *Pass) Start(scope *envelope.Scope, criteria directory.Criteria, res reservation.PartyReservation, emptyCfg *reservation.EmptyServerReservation) {
	p.loop.Post(func() {
		if p.state != StateNotMatchmaking {
			scope.Log.WithField("state", p.state.String()).Warn("search pass already running")
			return
		}
		p.state = StateInitialSearch
		p.scope = scope
		p.res = res
		p.emptyCfg = emptyCfg
		p.results = nil
		p.next = 0
		p.completed = false

		findCtx, cancel := context.WithCancel(context.Background())
		p.findCancel = cancel
		go func() {
			results, err := p.dir.FindSessions(findCtx, criteria)
			p.loop.Post(func() {
				if p.state != StateInitialSearch {
					return
				}
				p.findCancel = nil
				if err != nil {
					scope.Log.WithError(err).Info("session search failed")
					p.finish(ResultError, nil)
					return
				}
				scope.Log.WithField("candidates", len(results)).Info("session search returned")
				p.results = results
				p.state = StateTestingExistingSessions
				p.tryNextSession()
			})
		}()
	})
}

// Cancel tears the pass down through the full chain: pending timers, the join
// helper's reservation, the in-flight directory query. Cancellation completes
// only after all of it is gone.
func (p *Pass) Cancel() {
	p.loop.Post(func() {
		if p.state == StateNotMatchmaking || p.state == StateCancelingMatchmaking {
			return
		}
		p.state = StateCancelingMatchmaking
		p.timer.Cancel()
		p.timer = nil
		if p.findCancel != nil {
			p.findCancel()
			p.findCancel = nil
		}
		if p.attempting {
			// The helper's canceled completion finishes the teardown.
			p.helper.CancelReservation()
			return
		}
		// Nothing in flight below us; let delegates unwind before reporting.
		p.loop.Post(func() { p.finishCancel() })
	})
}

// tryNextSession advances to the next unvisited valid candidate, in index
// order.
func (p *Pass) tryNextSession() {
	for p.next < len(p.results) {
		candidate := p.results[p.next]
		p.next++
		if candidate.Invalid {
			continue
		}
		p.attempting = true
		p.helper.ReserveSession(p.scope, candidate, p.res, p.emptyCfg)
		return
	}
	p.finish(ResultNoMatchesAvailable, nil)
}

func (p *Pass) onHelperState(from, to joinhelper.State) {
	if to != joinhelper.StateWaitingOnGame || p.state != StateTestingExistingSessions {
		return
	}
	// Reservation granted; give it a moment to settle before the real join.
	p.timer = p.loop.Schedule(p.cfg.JoinDelay, func() {
		p.timer = nil
		p.helper.JoinReservedSession(p.scope)
	})
}

func (p *Pass) onHelperComplete(result joinhelper.Result) {
	p.attempting = false

	if p.state == StateCancelingMatchmaking {
		p.finishCancel()
		return
	}
	if p.state != StateTestingExistingSessions {
		return
	}

	switch result {
	case joinhelper.ResultSuccess:
		chosen := p.results[p.next-1]
		p.finish(ResultSuccess, &chosen)
	case joinhelper.ResultReservationFailed, joinhelper.ResultJoinFailed:
		p.timer = p.loop.Schedule(p.cfg.ContinueDelay, func() {
			p.timer = nil
			p.tryNextSession()
		})
	case joinhelper.ResultCanceled:
		p.finishCancel()
	}
}

func (p *Pass) finishCancel() {
	p.finish(ResultCanceled, nil)
}

func (p *Pass) finish(result Result, chosen *directory.SearchResult) {
	p.timer.Cancel()
	p.timer = nil
	if p.findCancel != nil {
		p.findCancel()
		p.findCancel = nil
	}
	p.state = StateNotMatchmaking
	if p.completed {
		return
	}
	p.completed = true
	if p.cbs.OnComplete != nil {
		p.cbs.OnComplete(result, chosen)
	}
}
