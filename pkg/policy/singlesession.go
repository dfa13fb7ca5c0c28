// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package policy

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

// SingleSessionConfig targets one already-known session, as from an invite or
// a persisted session reference.
type SingleSessionConfig struct {
	Target directory.SearchResult
	// CleanupSessionID, when set, names a stale local session to destroy
	// before joining the target.
	CleanupSessionID string
	// JoinDelay lets the granted reservation settle before the directory
	// join.
	JoinDelay   time.Duration
	Reservation reservation.PartyReservation
}

// SingleSession joins one specific session, bypassing the search phase. It
// still runs the full reserve, cleanup, join sequence.
type SingleSession struct {
	loop     *runtime.Loop
	dir      directory.SessionDirectory
	cfg      SingleSessionConfig
	complete CompleteFunc
	log      *logrus.Entry

	helper *joinhelper.Helper

	// loop-owned state
	scope    *envelope.Scope
	canceled bool
	finished bool
	timer    *runtime.Handle
}

func NewSingleSession(loop *runtime.Loop, dir directory.SessionDirectory, dialers joinhelper.DialerFactory, clientCfg beaconclient.Config, cfg SingleSessionConfig, complete CompleteFunc) *SingleSession {
	s := &SingleSession{
		loop:     loop,
		dir:      dir,
		cfg:      cfg,
		complete: complete,
		log:      logrus.WithField("policy", "single-session"),
	}
	s.helper = joinhelper.New(loop, dir, dialers, clientCfg, joinhelper.Callbacks{
		OnStateChanged: s.onHelperState,
		OnComplete:     s.onHelperComplete,
	})
	return s
}

func (s *SingleSession) Name() string {
	return "single-session"
}

func (s *SingleSession) StartMatchmaking(scope *envelope.Scope) {
	s.loop.Post(func() {
		s.scope = scope
		if s.cfg.CleanupSessionID != "" {
			// Tear down the stale local session first so the directory join
			// cannot collide with it.
			cleanupID := s.cfg.CleanupSessionID
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.dir.DestroySession(ctx, cleanupID); err != nil {
					scope.Log.WithError(err).WithField("sessionID", cleanupID).
						Warn("stale session cleanup failed")
				}
				s.loop.Post(s.reserve)
			}()
			return
		}
		s.reserve()
	})
}

func (s *SingleSession) CancelMatchmaking() {
	s.loop.Post(func() {
		if s.finished || s.canceled {
			return
		}
		s.canceled = true
		s.timer.Cancel()
		s.timer = nil
		// The helper's canceled completion finishes cancellation, even when
		// no attempt is active.
		s.helper.CancelReservation()
	})
}

func (s *SingleSession) reserve() {
	if s.finished || s.canceled {
		return
	}
	s.helper.ReserveSession(s.scope, s.cfg.Target, s.cfg.Reservation, nil)
}

func (s *SingleSession) onHelperState(from, to joinhelper.State) {
	if to != joinhelper.StateWaitingOnGame || s.canceled || s.finished {
		return
	}
	s.timer = s.loop.Schedule(s.cfg.JoinDelay, func() {
		s.timer = nil
		s.helper.JoinReservedSession(s.scope)
	})
}

func (s *SingleSession) onHelperComplete(result joinhelper.Result) {
	switch result {
	case joinhelper.ResultSuccess:
		chosen := s.cfg.Target
		s.finish(ResultSuccess, &chosen)
	case joinhelper.ResultCanceled:
		s.finish(ResultCancelled, nil)
	default:
		s.finish(ResultFailure, nil)
	}
}

func (s *SingleSession) finish(result Result, chosen *directory.SearchResult) {
	if s.finished {
		return
	}
	s.finished = true
	s.timer.Cancel()
	s.timer = nil
	log := s.log
	if s.scope != nil {
		log = s.scope.Log
	}
	log.WithFields(logrus.Fields{
		"result":    result.String(),
		"sessionID": s.cfg.Target.SessionID,
	}).Info("single session attempt finished")
	if s.complete != nil {
		s.complete(result, chosen)
	}
}
