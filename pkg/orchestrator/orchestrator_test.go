// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package orchestrator_test

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
	"github.com/ludare/partybeacon/pkg/orchestrator"
	"github.com/ludare/partybeacon/pkg/party"
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

type orchFixture struct {
	loop     *runtime.Loop
	loopback *testsetup.Loopback
	dir      *testsetup.StubDirectory
	roster   *party.Local
	orch     *orchestrator.Orchestrator

	mu         sync.Mutex
	mmResults  []policy.Result
	traveled   []directory.SearchResult
	travelFail []directory.SearchResult
}

func newOrchFixture(t *testing.T, cfg orchestrator.Config) *orchFixture {
	t.Helper()
	f := &orchFixture{
		loop:     runtime.NewLoop(),
		loopback: testsetup.NewLoopback(),
		dir:      &testsetup.StubDirectory{},
		roster:   party.NewLocal("party-1", "alpha"),
	}
	t.Cleanup(f.loop.Stop)
	f.roster.AddMember("alpha-m1")
	if cfg.ClientConfig.ConnectTimeout == 0 {
		cfg.ClientConfig = beaconclient.Config{ConnectTimeout: time.Second, ResponseTimeout: time.Second}
	}
	f.orch = orchestrator.New(f.loop, f.roster, f.roster, f.loopback.Dialers(), cfg, orchestrator.Callbacks{
		OnMatchmakingComplete: func(result policy.Result) {
			f.mu.Lock()
			f.mmResults = append(f.mmResults, result)
			f.mu.Unlock()
		},
		OnReadyToTravel: func(chosen directory.SearchResult) {
			f.mu.Lock()
			f.traveled = append(f.traveled, chosen)
			f.mu.Unlock()
		},
		OnTravelFailed: func(chosen directory.SearchResult) {
			f.mu.Lock()
			f.travelFail = append(f.travelFail, chosen)
			f.mu.Unlock()
		},
	}, testsetup.NewMetrics())
	t.Cleanup(f.orch.Close)
	return f
}

func (f *orchFixture) addHost(t *testing.T, sessionID string, proceedTimeout time.Duration) *host.Host {
	t.Helper()
	led := ledger.New(2, 4, 8, ledger.WithRand(rand.New(rand.NewSource(1))))
	h := host.New(host.Config{
		SessionID:      sessionID,
		SweepInterval:  20 * time.Millisecond,
		Timeouts:       reservation.Timeouts{Session: time.Hour, TravelSession: time.Hour},
		ProceedTimeout: proceedTimeout,
	}, led, emptyMembership{})
	t.Cleanup(h.Close)
	f.loopback.Register(sessionID, h)
	f.dir.Results = append(f.dir.Results, directory.SearchResult{SessionID: sessionID})
	return h
}

func (f *orchFixture) newSingleSession(sessionID string) policy.Policy {
	return policy.NewSingleSession(f.loop, f.dir, f.loopback.Dialers(),
		beaconclient.Config{ConnectTimeout: time.Second, ResponseTimeout: time.Second},
		policy.SingleSessionConfig{
			Target:      directory.SearchResult{SessionID: sessionID},
			JoinDelay:   10 * time.Millisecond,
			Reservation: reservation.NewPartyReservation(f.roster.LeaderID(), f.roster.MemberIDs()),
		}, f.orch.OnPolicyComplete)
}

func (f *orchFixture) lastMatchmakingResult() policy.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.mmResults) == 0 {
		return policy.Result("")
	}
	return f.mmResults[len(f.mmResults)-1]
}

func (f *orchFixture) traveledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.traveled)
}

func (f *orchFixture) travelFailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.travelFail)
}

// state reads the orchestrator state on its owning loop.
func (f *orchFixture) state() orchestrator.State {
	reply := make(chan orchestrator.State, 1)
	f.loop.Post(func() { reply <- f.orch.State() })
	return <-reply
}

func TestOrchestrator_FullFlowTravelsAfterProceedGrant(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: 10 * time.Millisecond})
	h := f.addHost(t, "session-1", time.Hour)

	f.orch.StartMatchmaking(testsetup.NewTestScope(), f.newSingleSession("session-1"))

	g.Eventually(f.lastMatchmakingResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultSuccess))
	// The reconnect resubmits the same party and is held at the proceed gate.
	g.Eventually(f.state, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(orchestrator.StateWaitingToProceed))

	h.GrantProceed("alpha")
	g.Eventually(f.traveledCount, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, "session-1", f.traveled[0].SessionID)
	assert.Equal(t, 0, f.travelFailCount())
	assert.Equal(t, orchestrator.StateIdle, f.state())
}

func TestOrchestrator_ProceedTimeoutFailsTravel(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: 10 * time.Millisecond})
	f.addHost(t, "session-1", 50*time.Millisecond)

	f.orch.StartMatchmaking(testsetup.NewTestScope(), f.newSingleSession("session-1"))

	g.Eventually(f.lastMatchmakingResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultSuccess))
	g.Eventually(f.travelFailCount, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, 0, f.traveledCount())
	assert.Equal(t, orchestrator.StateIdle, f.state())
}

func TestOrchestrator_SecondPolicyRejectedWhileBusy(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: time.Hour})
	f.dir.FindDelay = time.Hour

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(),
		beaconclient.Config{ConnectTimeout: time.Second, ResponseTimeout: time.Second},
		searchpass.Config{ContinueDelay: 10 * time.Millisecond, JoinDelay: 10 * time.Millisecond},
		policy.GatherConfig{
			PlaylistID:  "duel",
			Reservation: reservation.NewPartyReservation(f.roster.LeaderID(), f.roster.MemberIDs()),
		}, f.orch.OnPolicyComplete, policy.WithGatherFlip(func() bool { return false }))
	f.orch.StartMatchmaking(testsetup.NewTestScope(), gather)
	g.Eventually(f.state, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(orchestrator.StateMatchmaking))

	// A second policy must be refused outright, leaving the first untouched.
	f.orch.StartMatchmaking(testsetup.NewTestScope(), f.newSingleSession("session-1"))
	assert.Equal(t, orchestrator.StateMatchmaking, f.state())
	assert.Equal(t, policy.Result(""), f.lastMatchmakingResult())

	f.orch.CancelMatchmaking()
	g.Eventually(f.lastMatchmakingResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
	assert.Equal(t, orchestrator.StateIdle, f.state())
}

func TestOrchestrator_PartyLeaveCancelsMatchmaking(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: 10 * time.Millisecond})
	f.dir.FindDelay = time.Hour

	gather := policy.NewGather(f.loop, f.dir, f.loopback.Dialers(),
		beaconclient.Config{ConnectTimeout: time.Second, ResponseTimeout: time.Second},
		searchpass.Config{ContinueDelay: 10 * time.Millisecond, JoinDelay: 10 * time.Millisecond},
		policy.GatherConfig{
			PlaylistID:  "duel",
			Reservation: reservation.NewPartyReservation(f.roster.LeaderID(), f.roster.MemberIDs()),
		}, f.orch.OnPolicyComplete, policy.WithGatherFlip(func() bool { return false }))
	f.orch.StartMatchmaking(testsetup.NewTestScope(), gather)
	g.Eventually(f.state, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(orchestrator.StateMatchmaking))

	f.roster.Leave()
	g.Eventually(f.lastMatchmakingResult, time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultCancelled))
	assert.Equal(t, orchestrator.StateIdle, f.state())
}

func TestOrchestrator_PromotionDuringProceedWaitFailsTravel(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: 10 * time.Millisecond})
	f.addHost(t, "session-1", time.Hour)

	f.orch.StartMatchmaking(testsetup.NewTestScope(), f.newSingleSession("session-1"))
	g.Eventually(f.state, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(orchestrator.StateWaitingToProceed))

	f.roster.PromoteLeader("alpha-m1")
	g.Eventually(f.travelFailCount, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, "session-1", f.travelFail[0].SessionID)
	assert.Equal(t, orchestrator.StateIdle, f.state())
}

func TestOrchestrator_FailedPolicyReturnsToIdle(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: 10 * time.Millisecond})
	h := f.addHost(t, "session-1", time.Hour)
	h.SetDenyRequests(true)

	f.orch.StartMatchmaking(testsetup.NewTestScope(), f.newSingleSession("session-1"))

	g.Eventually(f.lastMatchmakingResult, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(policy.ResultFailure))
	assert.Equal(t, 0, f.traveledCount())
	assert.Equal(t, 0, f.travelFailCount())
	assert.Equal(t, orchestrator.StateIdle, f.state())
}

func TestOrchestrator_ConnLossDuringProceedWaitFailsTravel(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	f := newOrchFixture(t, orchestrator.Config{ReconnectDelay: 10 * time.Millisecond})
	h := f.addHost(t, "session-1", time.Hour)

	f.orch.StartMatchmaking(testsetup.NewTestScope(), f.newSingleSession("session-1"))
	g.Eventually(f.state, 2*time.Second, 10*time.Millisecond).
		Should(gomega.Equal(orchestrator.StateWaitingToProceed))

	// A dead host can never grant the proceed; the wait must resolve into a
	// failed travel instead of hanging.
	h.Close()
	g.Eventually(f.travelFailCount, time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
	assert.Equal(t, "session-1", f.travelFail[0].SessionID)
	assert.Equal(t, 0, f.traveledCount())
	assert.Equal(t, orchestrator.StateIdle, f.state())
}
