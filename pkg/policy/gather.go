// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package policy

import (
	"time"

	"golang.org/x/exp/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	beaconclient "github.com/ludare/partybeacon/pkg/beacon/client"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/envelope"
	"github.com/ludare/partybeacon/pkg/joinhelper"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/runtime"
	"github.com/ludare/partybeacon/pkg/searchpass"
)

// GatherConfig parameterizes one gathering attempt.
type GatherConfig struct {
	PlaylistID string
	// HostChance is the probability of switching to the hosting side when a
	// client-side search comes up empty, in [0, 1].
	HostChance float64
	// CreateNew forces the hosting side unconditionally and makes an empty
	// claim failure terminal instead of restarting the cycle.
	CreateNew bool
	// RestartDelay separates two full search cycles.
	RestartDelay time.Duration
	// MaxCycles bounds how many full cycles run before giving up with
	// NoResults. Zero means restart until canceled.
	MaxCycles int
	// MakePrivate is forwarded in the empty server claim.
	MakePrivate bool
	// Reservation is the party being placed.
	Reservation reservation.PartyReservation
}

// GatherOption mutates construction-time knobs.
type GatherOption func(*Gather)

// WithGatherFlip replaces the weighted coin. Tests pin the host/search
// decision with this.
func WithGatherFlip(flip func() bool) GatherOption {
	return func(g *Gather) {
		g.flip = flip
	}
}

// Gather alternates between searching for an existing gathering session and
// claiming an idle server to host one, re-flipping a weighted coin each time
// a search comes up empty. Exhaustion restarts the cycle rather than
// terminating.
type Gather struct {
	loop      *runtime.Loop
	dir       directory.SessionDirectory
	dialers   joinhelper.DialerFactory
	clientCfg beaconclient.Config
	passCfg   searchpass.Config
	cfg       GatherConfig
	complete  CompleteFunc
	log       *logrus.Entry
	flip      func() bool

	// loop-owned state
	scope    *envelope.Scope
	pass     *searchpass.Pass
	hosting  bool
	cycles   int
	canceled bool
	finished bool
	timer    *runtime.Handle
}

func NewGather(loop *runtime.Loop, dir directory.SessionDirectory, dialers joinhelper.DialerFactory, clientCfg beaconclient.Config, passCfg searchpass.Config, cfg GatherConfig, complete CompleteFunc, opts ...GatherOption) *Gather {
	g := &Gather{
		loop:      loop,
		dir:       dir,
		dialers:   dialers,
		clientCfg: clientCfg,
		passCfg:   passCfg,
		cfg:       cfg,
		complete:  complete,
		log:       logrus.WithField("policy", "gather"),
	}
	coin := distuv.Bernoulli{P: cfg.HostChance, Src: rand.NewSource(uint64(time.Now().UnixNano()))}
	g.flip = func() bool { return coin.Rand() > 0 }
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gather) Name() string {
	return "gather"
}

func (g *Gather) StartMatchmaking(scope *envelope.Scope) {
	g.loop.Post(func() {
		g.scope = scope
		g.beginCycle()
	})
}

func (g *Gather) CancelMatchmaking() {
	g.loop.Post(func() {
		if g.finished || g.canceled {
			return
		}
		g.canceled = true
		g.timer.Cancel()
		g.timer = nil
		if g.pass != nil {
			// The pass's canceled completion drives ours.
			g.pass.Cancel()
			return
		}
		g.loop.Post(func() { g.finish(ResultCancelled, nil) })
	})
}

// beginCycle flips the coin and launches the corresponding search pass.
func (g *Gather) beginCycle() {
	if g.finished || g.canceled {
		return
	}
	g.cycles++
	if g.cfg.MaxCycles > 0 && g.cycles > g.cfg.MaxCycles {
		g.finish(ResultNoResults, nil)
		return
	}

	g.hosting = g.cfg.CreateNew || g.flip()
	g.scope.Log.WithFields(logrus.Fields{
		"cycle":   g.cycles,
		"hosting": g.hosting,
	}).Info("starting gather cycle")

	criteria := directory.Criteria{PlaylistID: g.cfg.PlaylistID, EmptyOnly: g.hosting}
	var emptyCfg *reservation.EmptyServerReservation
	if g.hosting {
		emptyCfg = &reservation.EmptyServerReservation{
			PlaylistID:  g.cfg.PlaylistID,
			MakePrivate: g.cfg.MakePrivate,
		}
	}

	g.pass = searchpass.New(g.loop, g.dir, g.dialers, g.clientCfg, g.passCfg, searchpass.Callbacks{
		OnComplete: g.onPassComplete,
	})
	g.pass.Start(g.scope, criteria, g.cfg.Reservation, emptyCfg)
}

func (g *Gather) onPassComplete(result searchpass.Result, chosen *directory.SearchResult) {
	g.pass = nil
	switch result {
	case searchpass.ResultSuccess:
		g.finish(ResultSuccess, chosen)
	case searchpass.ResultCanceled:
		g.finish(ResultCancelled, nil)
	case searchpass.ResultError:
		g.finish(ResultFailure, nil)
	case searchpass.ResultNoMatchesAvailable:
		if g.hosting && g.cfg.CreateNew {
			// Asked to create a session but no empty server could be claimed.
			g.finish(ResultCreateFailure, nil)
			return
		}
		g.timer = g.loop.Schedule(g.cfg.RestartDelay, func() {
			g.timer = nil
			g.beginCycle()
		})
	}
}

func (g *Gather) finish(result Result, chosen *directory.SearchResult) {
	if g.finished {
		return
	}
	g.finished = true
	g.timer.Cancel()
	g.timer = nil
	log := g.log
	if g.scope != nil {
		// A cancel before the first start finishes without a scope.
		log = g.scope.Log
	}
	log.WithField("result", result.String()).Info("gather finished")
	if g.complete != nil {
		g.complete(result, chosen)
	}
}
