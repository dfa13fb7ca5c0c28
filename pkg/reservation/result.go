// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package reservation

// Result is the definite outcome of a reservation operation. The ledger and
// host never surface errors for domain conditions; every request maps onto
// exactly one of these.
type Result string

const (
	// ReservationAccepted means the reservation was added to the ledger.
	ReservationAccepted Result = "ReservationAccepted"

	// ReservationDuplicate means the identical leader/member set was already
	// reserved. This is a success outcome: it represents a reconnecting
	// client, not a double join.
	ReservationDuplicate Result = "ReservationDuplicate"

	// ReservationDenied means the host refused the request outright (wrong
	// session, deny mode, or unconfigured empty server).
	ReservationDenied Result = "ReservationDenied"

	// ReservationDeniedBanned means the external player validation hook
	// vetoed the request.
	ReservationDeniedBanned Result = "ReservationDenied_Banned"

	// PartyLimitReached means total capacity cannot hold the party.
	PartyLimitReached Result = "PartyLimitReached"

	// IncorrectPlayerCount means no single team can hold the party, or an
	// update conflicted with the existing reservation's member set.
	IncorrectPlayerCount Result = "IncorrectPlayerCount"

	// ReservationInvalid means the request itself was malformed.
	ReservationInvalid Result = "ReservationInvalid"

	// BadSessionID means the request targeted a session this host is not
	// serving.
	BadSessionID Result = "BadSessionId"

	// ReservationNotFound means an update or cancel referenced an unknown
	// leader.
	ReservationNotFound Result = "ReservationNotFound"

	// RequestTimedOut means the client gave up waiting for a response.
	RequestTimedOut Result = "RequestTimedOut"

	// ReservationRequestCanceled means the client withdrew the request.
	ReservationRequestCanceled Result = "ReservationRequestCanceled"

	// GeneralError covers connection-level failures folded into the result
	// vocabulary by the client.
	GeneralError Result = "GeneralError"
)

// IsSuccess reports whether the result grants (or re-confirms) admission.
func (r Result) IsSuccess() bool {
	return r == ReservationAccepted || r == ReservationDuplicate
}

func (r Result) String() string {
	return string(r)
}
