// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package host

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/beacon"
	"github.com/ludare/partybeacon/pkg/reservation"
)

// handleEnvelope is the per-request state machine. The host is stateless
// between requests; all durable state lives in the ledger. Every request,
// malformed input included, gets a response so the client never stalls.
func (h *Host) handleEnvelope(hc *hostConn, env beacon.Envelope) {
	switch env.Type {
	case beacon.MsgReservationRequest:
		var req beacon.ReservationRequest
		if err := beacon.Unwrap(env, &req); err != nil {
			h.respond(hc, reservation.ReservationInvalid)
			return
		}
		h.respond(hc, h.handleReservation(hc, req))

	case beacon.MsgReservationUpdateRequest:
		var req beacon.ReservationRequest
		if err := beacon.Unwrap(env, &req); err != nil {
			h.respond(hc, reservation.ReservationInvalid)
			return
		}
		h.respond(hc, h.handleUpdate(hc, req))

	case beacon.MsgCancelReservationRequest:
		var req beacon.CancelReservationRequest
		if err := beacon.Unwrap(env, &req); err != nil {
			return
		}
		h.handleCancel(req.PartyLeaderID)

	default:
		h.log.WithField("type", env.Type).Warn("unexpected beacon message")
	}
}

func (h *Host) respond(hc *hostConn, result reservation.Result) {
	if h.metrics != nil {
		h.metrics.ReservationResult(h.cfg.SessionID, result.String())
	}
	env, err := beacon.Wrap(beacon.MsgReservationResponse, beacon.ReservationResponse{Result: result})
	if err != nil {
		return
	}
	h.send(hc, env)
}

func (h *Host) handleReservation(hc *hostConn, req beacon.ReservationRequest) reservation.Result {
	if req.SessionID != h.cfg.SessionID {
		h.log.WithField("requested", req.SessionID).Info("reservation for wrong session")
		return reservation.BadSessionID
	}
	if h.deny {
		return reservation.ReservationDenied
	}
	if !req.Reservation.IsValid() {
		return reservation.ReservationInvalid
	}
	if h.led.NeedsConfiguration() && req.EmptyServer == nil {
		// Idle server not claimed yet; only a configuring reservation may
		// come first.
		return reservation.ReservationDenied
	}
	if req.EmptyServer != nil && h.led.Configured() {
		// The server was already claimed; there is nothing left to
		// configure.
		return reservation.ReservationDenied
	}

	idx := h.led.GetExistingReservation(req.Reservation.PartyLeaderID)
	if idx < 0 {
		return h.admitNewParty(hc, req.Reservation, req.EmptyServer)
	}

	existing := h.led.Reservations()[idx]
	if !existing.HasSameMembers(req.Reservation) {
		// Conflicting member set for a known leader: reject rather than
		// guess which list is authoritative.
		return reservation.IncorrectPlayerCount
	}

	// Duplicate resubmission by the same leader and members is a
	// reconnecting client, never a second reservation.
	if h.validate != nil && !h.validate(req.Reservation.Members) {
		return reservation.ReservationDeniedBanned
	}
	h.led.RefreshReservation(idx)
	hc.leaderID = req.Reservation.PartyLeaderID
	h.armProceedGate(hc)
	h.notifier.duplicateReservation(h.led.Reservations()[idx])
	return reservation.ReservationDuplicate
}

func (h *Host) admitNewParty(hc *hostConn, res reservation.PartyReservation, emptyCfg *reservation.EmptyServerReservation) reservation.Result {
	fits := h.led.DoesReservationFit(res)
	teamed := h.led.AreTeamsAvailable(res)
	switch {
	case !fits:
		return reservation.PartyLimitReached
	case !teamed:
		return reservation.IncorrectPlayerCount
	}
	if h.validate != nil && !h.validate(res.Members) {
		return reservation.ReservationDeniedBanned
	}
	if !h.led.AddReservation(&res) {
		// Capacity and team checks passed individually but assignment still
		// failed; treat as the team-shaped rejection.
		return reservation.IncorrectPlayerCount
	}
	if emptyCfg != nil {
		// Configuration belongs to the first accepted reservation; a
		// rejected claim leaves the server unclaimed.
		h.led.Configure(*emptyCfg)
	}
	hc.leaderID = res.PartyLeaderID
	h.log.WithFields(map[string]interface{}{
		"leader": res.PartyLeaderID,
		"party":  len(res.Members),
		"team":   res.TeamNumber,
	}).Info("reservation accepted")
	h.afterLedgerChange()
	return reservation.ReservationAccepted
}

func (h *Host) handleUpdate(hc *hostConn, req beacon.ReservationRequest) reservation.Result {
	if req.SessionID != h.cfg.SessionID {
		return reservation.BadSessionID
	}
	if h.deny {
		return reservation.ReservationDenied
	}
	if !req.Reservation.IsValid() {
		return reservation.ReservationInvalid
	}

	idx := h.led.GetExistingReservation(req.Reservation.PartyLeaderID)
	if idx < 0 {
		return reservation.ReservationNotFound
	}

	existing := h.led.Reservations()[idx]
	newcomers := make([]reservation.PlayerReservation, 0, len(req.Reservation.Members))
	for _, m := range req.Reservation.Members {
		if !existing.ContainsMember(m.PlayerID) {
			newcomers = append(newcomers, m)
		}
	}
	if len(newcomers) == 0 {
		// Nothing to add: same party resubmitting, refresh and confirm.
		h.led.RefreshReservation(idx)
		return reservation.ReservationDuplicate
	}
	if h.validate != nil && !h.validate(newcomers) {
		return reservation.ReservationDeniedBanned
	}
	if !h.led.AppendMembers(req.Reservation.PartyLeaderID, newcomers) {
		return reservation.PartyLimitReached
	}
	hc.leaderID = req.Reservation.PartyLeaderID
	h.afterLedgerChange()
	return reservation.ReservationAccepted
}

// handleCancel removes a reservation unconditionally. Cancels carry no typed
// response.
func (h *Host) handleCancel(leaderID reservation.PlayerID) {
	if !h.led.RemoveReservation(leaderID) {
		return
	}
	h.log.WithField("leader", leaderID).Info("reservation canceled")
	h.notifier.cancelationReceived(leaderID)
	h.afterLedgerChange()
}

// afterLedgerChange pushes the unsolicited notifications every ledger change
// owes the attached clients.
func (h *Host) afterLedgerChange() {
	if h.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		h.log.Trace(h.led.Dump())
	}
	h.notifier.reservationChanged()
	if h.metrics != nil {
		h.metrics.ReservedSlots(h.cfg.SessionID, h.led.ConsumedSlots())
	}

	count, err := beacon.Wrap(beacon.MsgReservationCountUpdate, beacon.ReservationCountUpdate{
		RemainingSlots: h.led.RemainingSlots(),
	})
	if err == nil {
		h.broadcast(count)
	}

	// ReservationFull fires once on the transition to capacity, not on every
	// change while full.
	full := h.led.IsBeaconFull()
	if full && !h.wasFull {
		h.notifier.reservationsFull()
		env, _ := beacon.Wrap(beacon.MsgReservationFull, nil)
		h.broadcast(env)
	}
	h.wasFull = full
}

// armProceedGate starts the proceed-timeout clock for a reconnected party.
// The gate is resolved either by GrantProceed or by the sweep noticing the
// deadline passed.
func (h *Host) armProceedGate(hc *hostConn) {
	if h.cfg.ProceedTimeout <= 0 || hc.proceedGranted {
		return
	}
	hc.proceedDeadline = time.Now().Add(h.cfg.ProceedTimeout)
}
