// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package beacon defines the admission-control wire protocol: the typed
// messages exchanged between a reservation client and a reservation host over
// one reliable ordered connection, and the Conn abstraction they travel on.
package beacon

import (
	"encoding/json"
	"fmt"

	"github.com/ludare/partybeacon/pkg/reservation"
)

// MessageType discriminates the payload carried by an Envelope.
type MessageType string

const (
	// Client -> Host
	MsgReservationRequest       MessageType = "ReservationRequest"
	MsgReservationUpdateRequest MessageType = "ReservationUpdateRequest"
	MsgCancelReservationRequest MessageType = "CancelReservationRequest"

	// Host -> Client
	MsgReservationResponse    MessageType = "ReservationResponse"
	MsgReservationCountUpdate MessageType = "ReservationCountUpdate"
	MsgReservationFull        MessageType = "ReservationFull"
	MsgAllowedToProceed       MessageType = "AllowedToProceed"
	MsgProceedTimeout         MessageType = "AllowedToProceedTimeout"
)

// Envelope is the one-per-frame wire unit. Payload holds the JSON encoding of
// the message struct matching Type; gate messages carry no payload.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ReservationRequest asks the host to admit a party into sessionID.
// EmptyServer is set only when claiming and configuring an idle server.
type ReservationRequest struct {
	SessionID   string                              `json:"session_id"`
	Reservation reservation.PartyReservation        `json:"reservation"`
	EmptyServer *reservation.EmptyServerReservation `json:"empty_server,omitempty"`
}

// ReservationResponse carries the definite outcome of a request or update.
type ReservationResponse struct {
	Result reservation.Result `json:"result"`
}

// CancelReservationRequest withdraws a party's reservation. There is no typed
// response; the host-side state change is the whole effect.
type CancelReservationRequest struct {
	PartyLeaderID reservation.PlayerID `json:"party_leader_id"`
}

// ReservationCountUpdate is pushed unsolicited on every ledger change.
type ReservationCountUpdate struct {
	RemainingSlots int `json:"remaining_slots"`
}

// Wrap encodes a message struct into an Envelope of the given type.
func Wrap(t MessageType, msg interface{}) (Envelope, error) {
	if msg == nil {
		return Envelope{Type: t}, nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", t, err)
	}
	return Envelope{Type: t, Payload: payload}, nil
}

// Unwrap decodes an envelope's payload into msg.
func Unwrap(env Envelope, msg interface{}) error {
	if err := json.Unmarshal(env.Payload, msg); err != nil {
		return fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return nil
}
