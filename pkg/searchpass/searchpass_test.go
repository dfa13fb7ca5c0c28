// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package searchpass_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"

	beaconclient "github.com/ludare/partybeacon/pkg/beacon/client"
	"github.com/ludare/partybeacon/pkg/beacon/host"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/reservation/ledger"
	"github.com/ludare/partybeacon/pkg/runtime"
	"github.com/ludare/partybeacon/pkg/searchpass"
	"github.com/ludare/partybeacon/pkg/testsetup"
)

type emptyMembership struct{}

func (emptyMembership) IsSessionMember(reservation.PlayerID) bool { return false }
func (emptyMembership) IsSessionOwner(reservation.PlayerID) bool  { return false }

type completion struct {
	result searchpass.Result
	chosen *directory.SearchResult
}

type passFixture struct {
	loop        *runtime.Loop
	loopback    *testsetup.Loopback
	dir         *testsetup.StubDirectory
	pass        *searchpass.Pass
	mu          sync.Mutex
	completions []completion
}

func (f *passFixture) completionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions)
}

func (f *passFixture) lastCompletion() completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completions[len(f.completions)-1]
}

func newPassFixture(t *testing.T, cfg searchpass.Config) *passFixture {
	t.Helper()
	loop := runtime.NewLoop()
	t.Cleanup(loop.Stop)

	f := &passFixture{
		loop:     loop,
		loopback: testsetup.NewLoopback(),
		dir:      &testsetup.StubDirectory{},
	}
	f.pass = searchpass.New(loop, f.dir, f.loopback.Dialers(),
		beaconclient.Config{ConnectTimeout: time.Second, ResponseTimeout: time.Second},
		cfg, searchpass.Callbacks{
			OnComplete: func(result searchpass.Result, chosen *directory.SearchResult) {
				f.mu.Lock()
				f.completions = append(f.completions, completion{result, chosen})
				f.mu.Unlock()
			},
		})
	return f
}

func (f *passFixture) addHost(t *testing.T, sessionID string, deny bool) *host.Host {
	t.Helper()
	led := ledger.New(2, 4, 8, ledger.WithRand(rand.New(rand.NewSource(1))))
	h := host.New(host.Config{
		SessionID:     sessionID,
		SweepInterval: 50 * time.Millisecond,
		Timeouts:      reservation.Timeouts{Session: time.Hour, TravelSession: time.Hour},
	}, led, emptyMembership{})
	t.Cleanup(h.Close)
	if deny {
		h.SetDenyRequests(true)
	}
	f.loopback.Register(sessionID, h)
	f.dir.Results = append(f.dir.Results, directory.SearchResult{SessionID: sessionID})
	return h
}

func testParty(leader string, size int) reservation.PartyReservation {
	members := make([]reservation.PlayerID, 0, size)
	for i := 1; i < size; i++ {
		members = append(members, reservation.PlayerID(leader+"-m"+string(rune('0'+i))))
	}
	return reservation.NewPartyReservation(reservation.PlayerID(leader), members)
}

func fastConfig() searchpass.Config {
	return searchpass.Config{
		ContinueDelay: 10 * time.Millisecond,
		JoinDelay:     10 * time.Millisecond,
	}
}

func TestPass_JoinsFirstValidCandidate(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newPassFixture(t, fastConfig())
	f.addHost(t, "session-1", false)
	f.addHost(t, "session-2", false)

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)

	g.Eventually(f.completionCount, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	last := f.lastCompletion()
	assert.Equal(t, searchpass.ResultSuccess, last.result)
	assert.Equal(t, "session-1", last.chosen.SessionID)
	assert.Equal(t, []string{"session-1"}, f.dir.JoinCalls())
}

func TestPass_SkipsInvalidAndRefusedCandidates(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newPassFixture(t, fastConfig())

	// First candidate is marked invalid and never dialed; second refuses.
	f.dir.Results = append(f.dir.Results, directory.SearchResult{SessionID: "bad", Invalid: true})
	f.addHost(t, "session-deny", true)
	f.addHost(t, "session-open", false)

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)

	g.Eventually(f.completionCount, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	last := f.lastCompletion()
	assert.Equal(t, searchpass.ResultSuccess, last.result)
	assert.Equal(t, "session-open", last.chosen.SessionID)
	assert.Equal(t, []string{"session-open"}, f.dir.JoinCalls())
}

func TestPass_ExhaustionYieldsNoMatches(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newPassFixture(t, fastConfig())
	f.addHost(t, "session-deny", true)

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)

	g.Eventually(f.completionCount, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, searchpass.ResultNoMatchesAvailable, f.lastCompletion().result)
	assert.Nil(t, f.lastCompletion().chosen)
}

func TestPass_SearchErrorFails(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newPassFixture(t, fastConfig())
	f.dir.FindErr = errors.New("directory unavailable")

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)

	g.Eventually(f.completionCount, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, searchpass.ResultError, f.lastCompletion().result)
}

func TestPass_CancelDuringSearchQuery(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newPassFixture(t, fastConfig())
	f.dir.FindDelay = time.Hour

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)
	g.Eventually(f.dir.FindCalls, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))

	f.pass.Cancel()
	g.Eventually(f.completionCount, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, searchpass.ResultCanceled, f.lastCompletion().result)
}

func TestPass_CancelWhileTestingSessionsIsCleanAndFinal(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	// A long continue delay keeps the pass parked between candidates.
	f := newPassFixture(t, searchpass.Config{
		ContinueDelay: time.Hour,
		JoinDelay:     time.Hour,
	})
	denying := f.addHost(t, "session-deny", true)
	open := f.addHost(t, "session-open", false)

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)

	// Wait for the first candidate's refusal to land the pass on its
	// between-candidates timer.
	g.Eventually(func() int {
		return denying.Stats().Connections
	}, time.Second, 10*time.Millisecond).Should(gomega.Equal(0))
	g.Eventually(f.dir.FindCalls, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))

	f.pass.Cancel()
	g.Eventually(f.completionCount, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, searchpass.ResultCanceled, f.lastCompletion().result)

	done := make(chan searchpass.State, 1)
	f.loop.Post(func() { done <- f.pass.State() })
	assert.Equal(t, searchpass.StateNotMatchmaking, <-done)

	// No orphaned network state: nothing ever reached the second host, and
	// the canceled timer never advances the walk.
	g.Consistently(func() int {
		return open.Stats().Connections
	}, 200*time.Millisecond, 20*time.Millisecond).Should(gomega.Equal(0))
	assert.Empty(t, f.dir.JoinCalls())
	g.Expect(f.completionCount()).To(gomega.Equal(1))
}

func TestPass_CancelDuringReservationAttempt(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newPassFixture(t, searchpass.Config{
		ContinueDelay: time.Hour,
		JoinDelay:     time.Hour,
	})
	h := f.addHost(t, "session-open", false)

	f.pass.Start(testsetup.NewTestScope(), directory.Criteria{}, testParty("alpha", 2), nil)

	// The reservation lands and the pass parks on the join-delay timer.
	g.Eventually(func() int {
		return h.Stats().ConsumedSlots
	}, time.Second, 10*time.Millisecond).Should(gomega.Equal(2))

	f.pass.Cancel()
	g.Eventually(f.completionCount, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, searchpass.ResultCanceled, f.lastCompletion().result)

	// The helper's cancel chain releases the reserved slots too.
	g.Eventually(func() int {
		return h.Stats().ConsumedSlots
	}, time.Second, 10*time.Millisecond).Should(gomega.Equal(0))
}
