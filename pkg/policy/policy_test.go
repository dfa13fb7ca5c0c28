// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package policy_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"

	beaconclient "github.com/ludare/partybeacon/pkg/beacon/client"
	"github.com/ludare/partybeacon/pkg/beacon/host"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/policy"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/reservation/ledger"
	"github.com/ludare/partybeacon/pkg/runtime"
	"github.com/ludare/partybeacon/pkg/searchpass"
	"github.com/ludare/partybeacon/pkg/testsetup"
)

type emptyMembership struct{}

func (emptyMembership) IsSessionMember(reservation.PlayerID) bool { return false }
func (emptyMembership) IsSessionOwner(reservation.PlayerID) bool  { return false }

type policyFixture struct {
	loop     *runtime.Loop
	loopback *testsetup.Loopback
	dir      *testsetup.StubDirectory

	mu     sync.Mutex
	result *policy.Result
	chosen *directory.SearchResult
}

func newPolicyFixture(t *testing.T) *policyFixture {
	t.Helper()
	loop := runtime.NewLoop()
	t.Cleanup(loop.Stop)
	return &policyFixture{
		loop:     loop,
		loopback: testsetup.NewLoopback(),
		dir:      &testsetup.StubDirectory{},
	}
}

func (f *policyFixture) complete(result policy.Result, chosen *directory.SearchResult) {
	f.mu.Lock()
	f.result = &result
	f.chosen = chosen
	f.mu.Unlock()
}

func (f *policyFixture) completedResult() policy.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result == nil {
		return policy.Result("")
	}
	return *f.result
}

func (f *policyFixture) addHost(t *testing.T, sessionID string, empty bool) *host.Host {
	t.Helper()
	opts := []ledger.Option{ledger.WithRand(rand.New(rand.NewSource(1)))}
	if empty {
		opts = append(opts, ledger.WithRequiredConfiguration())
	}
	led := ledger.New(2, 4, 8, opts...)
	h := host.New(host.Config{
		SessionID:     sessionID,
		SweepInterval: 50 * time.Millisecond,
		Timeouts:      reservation.Timeouts{Session: time.Hour, TravelSession: time.Hour},
	}, led, emptyMembership{})
	t.Cleanup(h.Close)
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

func fastPassConfig() searchpass.Config {
	return searchpass.Config{
		ContinueDelay: 10 * time.Millisecond,
		JoinDelay:     10 * time.Millisecond,
	}
}

func clientConfig() beaconclient.Config {
	return beaconclient.Config{ConnectTimeout: time.Second, ResponseTimeout: time.Second}
}

func flipAlways(v bool) policy.GatherOption {
	return policy.WithGatherFlip(func() bool { return v })
}

func TestGather_JoinsExistingSession(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)
	f.addHost(t, "session-1", false)

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:  "duel",
			Reservation: testParty("alpha", 2),
		}, f.complete, flipAlways(false))
	gather.StartMatchmaking(g.TestScope)

	g.Eventually(f.completedResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultSuccess))
	assert.Equal(t, "session-1", f.chosen.SessionID)
}

func TestGather_ClaimsEmptyServerWhenHosting(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)
	h := f.addHost(t, "idle-1", true)

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:  "duel",
			Reservation: testParty("alpha", 2),
		}, f.complete, flipAlways(true))
	gather.StartMatchmaking(g.TestScope)

	g.Eventually(f.completedResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultSuccess))
	assert.Equal(t, "idle-1", f.chosen.SessionID)
	// The claim configured the idle server in the same round trip.
	assert.Equal(t, 2, h.Stats().ConsumedSlots)
}

func TestGather_CreateNewFailsWithoutEmptyServers(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:  "duel",
			CreateNew:   true,
			Reservation: testParty("alpha", 2),
		}, f.complete, flipAlways(false))
	gather.StartMatchmaking(g.TestScope)

	g.Eventually(f.completedResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCreateFailure))
}

func TestGather_RestartsCycleUntilBounded(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:   "duel",
			RestartDelay: 10 * time.Millisecond,
			MaxCycles:    3,
			Reservation:  testParty("alpha", 2),
		}, f.complete, flipAlways(false))
	gather.StartMatchmaking(g.TestScope)

	g.Eventually(f.completedResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultNoResults))
	// One directory query per cycle.
	assert.Equal(t, 3, f.dir.FindCalls())
}

func TestGather_CancelBetweenCycles(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:   "duel",
			RestartDelay: time.Hour,
			Reservation:  testParty("alpha", 2),
		}, f.complete, flipAlways(false))
	gather.StartMatchmaking(g.TestScope)

	// The empty search finishes and gather parks on the restart timer.
	g.Eventually(f.dir.FindCalls, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))

	gather.CancelMatchmaking()
	g.Eventually(f.completedResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
}

func TestGather_CancelDuringSearch(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)
	f.dir.FindDelay = time.Hour

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:  "duel",
			Reservation: testParty("alpha", 2),
		}, f.complete, flipAlways(false))
	gather.StartMatchmaking(g.TestScope)
	g.Eventually(f.dir.FindCalls, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))

	gather.CancelMatchmaking()
	g.Eventually(f.completedResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
}

func TestSingleSession_JoinsKnownSession(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)
	f.addHost(t, "invited-session", false)

	single := policy.NewSingleSession(f.loop, f.dir, f.loopback.Dialers(), clientConfig(),
		policy.SingleSessionConfig{
			Target:           directory.SearchResult{SessionID: "invited-session"},
			CleanupSessionID: "stale-session",
			JoinDelay:        10 * time.Millisecond,
			Reservation:      testParty("alpha", 2),
		}, f.complete)
	single.StartMatchmaking(g.TestScope)

	g.Eventually(f.completedResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultSuccess))
	assert.Equal(t, "invited-session", f.chosen.SessionID)
	// The stale local session was destroyed before joining, and no search
	// ever ran.
	assert.Equal(t, []string{"stale-session"}, f.dir.Destroyed())
	assert.Equal(t, 0, f.dir.FindCalls())
}

func TestSingleSession_FailureWhenRefused(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)
	h := f.addHost(t, "invited-session", false)
	h.SetDenyRequests(true)

	single := policy.NewSingleSession(f.loop, f.dir, f.loopback.Dialers(), clientConfig(),
		policy.SingleSessionConfig{
			Target:      directory.SearchResult{SessionID: "invited-session"},
			JoinDelay:   10 * time.Millisecond,
			Reservation: testParty("alpha", 2),
		}, f.complete)
	single.StartMatchmaking(g.TestScope)

	g.Eventually(f.completedResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultFailure))
}

func TestSingleSession_Cancel(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)
	f.addHost(t, "invited-session", false)

	single := policy.NewSingleSession(f.loop, f.dir, f.loopback.Dialers(), clientConfig(),
		policy.SingleSessionConfig{
			Target:      directory.SearchResult{SessionID: "invited-session"},
			JoinDelay:   time.Hour,
			Reservation: testParty("alpha", 2),
		}, f.complete)
	single.StartMatchmaking(g.TestScope)
	single.CancelMatchmaking()

	g.Eventually(f.completedResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
}

func TestGather_CancelBeforeStartCompletesCancelled(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(), clientConfig(), fastPassConfig(),
		policy.GatherConfig{
			PlaylistID:  "duel",
			Reservation: testParty("alpha", 2),
		}, f.complete, flipAlways(false))

	// A cancel with no attempt in flight still reaches the terminal state.
	gather.CancelMatchmaking()
	g.Eventually(f.completedResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
}

func TestSingleSession_CancelBeforeStartCompletesCancelled(t *testing.T) {
	g := testsetup.ParallelWithGomega(t)
	f := newPolicyFixture(t)

	single := policy.NewSingleSession(f.loop, f.dir, f.loopback.Dialers(), clientConfig(),
		policy.SingleSessionConfig{
			Target:      directory.SearchResult{SessionID: "session-1"},
			JoinDelay:   10 * time.Millisecond,
			Reservation: testParty("alpha", 2),
		}, f.complete)

	single.CancelMatchmaking()
	g.Eventually(f.completedResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
}
