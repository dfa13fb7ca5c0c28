// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package ledger implements the authoritative per-session reservation table:
// team assignment, capacity checks, duplicate detection and per-player
// eviction bookkeeping. The ledger performs no I/O and never returns errors;
// every operation has a definite outcome.
package ledger

import (
	"math/rand"
	"time"

	"github.com/davecgh/go-spew/spew"
	pie "github.com/elliotchance/pie/v2"
	"github.com/mitchellh/copystructure"
	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/reservation"
)

// State is the serializable snapshot of a ledger, used to carry reservations
// across a session-to-session transition and reattach them to a fresh host.
type State struct {
	NumTeams          int                            `json:"num_teams"`
	MaxPlayersPerTeam int                            `json:"max_players_per_team"`
	MaxReservations   int                            `json:"max_reservations"`
	ForcedTeamNumber  int                            `json:"forced_team_number"`
	Ranked            bool                           `json:"ranked"`
	Reservations      []reservation.PartyReservation `json:"reservations"`
	PendingJoinIDs    []reservation.PlayerID         `json:"pending_join_ids"`
	Configured        bool                           `json:"configured"`
	NeedsConfig       bool                           `json:"needs_config"`
	PlaylistID        string                         `json:"playlist_id"`
	Private           bool                           `json:"private"`
}

// Ledger is exclusively owned by its host; all mutations must happen on the
// host's event loop.
type Ledger struct {
	numTeams          int
	maxPlayersPerTeam int
	maxReservations   int
	forcedTeamNumber  int
	ranked            bool

	needsConfig bool
	configured  bool
	playlistID  string
	private     bool

	reservations []reservation.PartyReservation
	pendingJoin  map[reservation.PlayerID]struct{}

	rng *rand.Rand
}

// Option configures a new ledger.
type Option func(*Ledger)

// WithRanked makes team balancing stack the largest eligible team instead of
// spreading parties onto the smallest.
func WithRanked() Option {
	return func(l *Ledger) { l.ranked = true }
}

// WithForcedTeam pins every reservation onto one team, used when the session
// has a single logical team.
func WithForcedTeam(team int) Option {
	return func(l *Ledger) { l.forcedTeamNumber = team }
}

// WithRequiredConfiguration marks the ledger as belonging to an idle server
// that must be claimed and configured by the first accepted reservation.
func WithRequiredConfiguration() Option {
	return func(l *Ledger) { l.needsConfig = true }
}

// WithRand overrides the tie-break randomness source, mostly for tests.
func WithRand(rng *rand.Rand) Option {
	return func(l *Ledger) { l.rng = rng }
}

// New creates an empty ledger for a session that admits at most
// maxReservations players across numTeams teams.
func New(numTeams, maxPlayersPerTeam, maxReservations int, opts ...Option) *Ledger {
	l := &Ledger{
		numTeams:          numTeams,
		maxPlayersPerTeam: maxPlayersPerTeam,
		maxReservations:   maxReservations,
		pendingJoin:       make(map[reservation.PlayerID]struct{}),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromState rebuilds a ledger from a snapshot taken by Snapshot. This is the
// one legitimate case of reservation state outliving its original host.
func FromState(state *State, opts ...Option) *Ledger {
	l := New(state.NumTeams, state.MaxPlayersPerTeam, state.MaxReservations, opts...)
	l.forcedTeamNumber = state.ForcedTeamNumber
	l.ranked = state.Ranked
	l.configured = state.Configured
	l.needsConfig = state.NeedsConfig
	l.playlistID = state.PlaylistID
	l.private = state.Private
	l.reservations = state.Reservations
	for _, id := range state.PendingJoinIDs {
		l.pendingJoin[id] = struct{}{}
	}
	return l
}

// Snapshot deep-copies the ledger into a detached, serializable state.
func (l *Ledger) Snapshot() *State {
	state := &State{
		NumTeams:          l.numTeams,
		MaxPlayersPerTeam: l.maxPlayersPerTeam,
		MaxReservations:   l.maxReservations,
		ForcedTeamNumber:  l.forcedTeamNumber,
		Ranked:            l.ranked,
		Configured:        l.configured,
		NeedsConfig:       l.needsConfig,
		PlaylistID:        l.playlistID,
		Private:           l.private,
	}
	copied, err := copystructure.Copy(l.reservations)
	if err != nil {
		logrus.Warn("failed copy ledger reservations:", err)
	}
	state.Reservations, _ = copied.([]reservation.PartyReservation)
	for id := range l.pendingJoin {
		state.PendingJoinIDs = append(state.PendingJoinIDs, id)
	}
	return state
}

// ConsumedSlots returns the total number of reserved player slots.
func (l *Ledger) ConsumedSlots() int {
	count := 0
	for _, r := range l.reservations {
		count += len(r.Members)
	}
	return count
}

// RemainingSlots returns how many more players can be reserved in total.
func (l *Ledger) RemainingSlots() int {
	return l.maxReservations - l.ConsumedSlots()
}

// IsBeaconFull reports whether every admission slot is consumed.
func (l *Ledger) IsBeaconFull() bool {
	return l.ConsumedSlots() >= l.maxReservations
}

// DoesReservationFit reports whether total capacity can hold the party. It
// says nothing about team capacity; callers must also check
// AreTeamsAvailable, since a party can fit the headcount yet fit no team.
func (l *Ledger) DoesReservationFit(req reservation.PartyReservation) bool {
	return l.RemainingSlots() >= len(req.Members)
}

// AreTeamsAvailable reports whether some single team has room for the whole
// party. A single-team session's forced team is always available.
func (l *Ledger) AreTeamsAvailable(req reservation.PartyReservation) bool {
	if l.numTeams <= 1 {
		return true
	}
	for team := 0; team < l.numTeams; team++ {
		if l.maxPlayersPerTeam-l.teamSize(team) >= len(req.Members) {
			return true
		}
	}
	return false
}

// GetExistingReservation returns the index of the reservation owned by
// leaderID, or -1 when none exists.
func (l *Ledger) GetExistingReservation(leaderID reservation.PlayerID) int {
	return pie.FindFirstUsing(l.reservations, func(r reservation.PartyReservation) bool {
		return r.PartyLeaderID == leaderID
	})
}

// AddReservation assigns a team to the request and appends it. Returns false
// without mutation when no team has room. Every member is marked pending
// join until the sweep observes them in the live session.
func (l *Ledger) AddReservation(req *reservation.PartyReservation) bool {
	if !l.DoesReservationFit(*req) {
		return false
	}
	team, ok := l.pickTeam(len(req.Members))
	if !ok {
		return false
	}
	req.TeamNumber = team
	l.reservations = append(l.reservations, *req)
	l.MarkPendingJoin(req.MemberIDs())
	return true
}

// RemoveReservation atomically removes the whole party's reservation.
func (l *Ledger) RemoveReservation(leaderID reservation.PlayerID) bool {
	idx := l.GetExistingReservation(leaderID)
	if idx < 0 {
		return false
	}
	for _, id := range l.reservations[idx].MemberIDs() {
		delete(l.pendingJoin, id)
	}
	l.reservations = append(l.reservations[:idx], l.reservations[idx+1:]...)
	return true
}

// RemovePlayer removes one player from whichever reservation contains them.
// Removing a reservation's last player removes the reservation itself.
func (l *Ledger) RemovePlayer(playerID reservation.PlayerID) bool {
	for i := range l.reservations {
		r := &l.reservations[i]
		if !r.ContainsMember(playerID) {
			continue
		}
		r.Members = pie.FilterNot(r.Members, func(m reservation.PlayerReservation) bool {
			return m.PlayerID == playerID
		})
		delete(l.pendingJoin, playerID)
		if len(r.Members) == 0 {
			l.reservations = append(l.reservations[:i], l.reservations[i+1:]...)
		}
		return true
	}
	return false
}

// GetMaxAvailableTeamSize returns the largest number of empty slots on any
// one team, the biggest party that can still be admitted as a unit.
func (l *Ledger) GetMaxAvailableTeamSize() int {
	if l.numTeams <= 1 {
		return l.RemainingSlots()
	}
	best := 0
	for team := 0; team < l.numTeams; team++ {
		if free := l.maxPlayersPerTeam - l.teamSize(team); free > best {
			best = free
		}
	}
	return best
}

// Reconfigure replaces the configured capacity. Existing reservations are not
// migrated; shrinking below current consumption leaves the ledger over
// capacity until players drain.
func (l *Ledger) Reconfigure(numTeams, maxPlayersPerTeam, maxReservations int) {
	l.numTeams = numTeams
	l.maxPlayersPerTeam = maxPlayersPerTeam
	l.maxReservations = maxReservations
}

// TeamFreeSlots returns the number of empty slots on one team. Single-team
// sessions are bounded by total capacity only.
func (l *Ledger) TeamFreeSlots(team int) int {
	if l.numTeams <= 1 {
		return l.RemainingSlots()
	}
	return l.maxPlayersPerTeam - l.teamSize(team)
}

// AppendMembers grows an existing reservation in place, used by update
// requests that add party members. Returns false without mutation when total
// capacity or the reservation's team cannot hold the newcomers.
func (l *Ledger) AppendMembers(leaderID reservation.PlayerID, members []reservation.PlayerReservation) bool {
	idx := l.GetExistingReservation(leaderID)
	if idx < 0 {
		return false
	}
	if l.RemainingSlots() < len(members) || l.TeamFreeSlots(l.reservations[idx].TeamNumber) < len(members) {
		return false
	}
	l.reservations[idx].Members = append(l.reservations[idx].Members, members...)
	ids := make([]reservation.PlayerID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.PlayerID)
	}
	l.MarkPendingJoin(ids)
	return true
}

// teamSize returns the number of reserved players assigned to team.
func (l *Ledger) teamSize(team int) int {
	size := 0
	for _, r := range l.reservations {
		if r.TeamNumber == team {
			size += len(r.Members)
		}
	}
	return size
}

// pickTeam selects the team for a party of the given size. Ranked stacks the
// largest eligible team, unranked spreads onto the smallest; ties break
// randomly.
func (l *Ledger) pickTeam(partySize int) (int, bool) {
	if l.numTeams <= 1 {
		return l.forcedTeamNumber, true
	}

	candidates := make([]int, 0, l.numTeams)
	bestSize := -1
	for team := 0; team < l.numTeams; team++ {
		size := l.teamSize(team)
		if l.maxPlayersPerTeam-size < partySize {
			continue
		}
		better := size < bestSize
		if l.ranked {
			better = size > bestSize
		}
		switch {
		case bestSize < 0 || better:
			bestSize = size
			candidates = candidates[:0]
			candidates = append(candidates, team)
		case size == bestSize:
			candidates = append(candidates, team)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[l.rng.Intn(len(candidates))], true
}

// Dump renders the full ledger state for trace-level logging.
func (l *Ledger) Dump() string {
	return spew.Sdump(l.reservations)
}
