// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package client implements the party leader's side of the beacon protocol:
// a thin RPC wrapper holding one outstanding reservation request at a time.
// Network-level failures are folded into the reservation result vocabulary so
// upstream state machines only handle one failure channel.
package client

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/beacon"
	"github.com/ludare/partybeacon/pkg/envelope"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/runtime"
)

// Target identifies the host beacon a request is aimed at.
type Target struct {
	SessionID string
	Dial      beacon.Dialer
}

// Config carries the client-side deadlines.
type Config struct {
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
}

// Callbacks are the client's upward notifications. OnComplete fires exactly
// once per submitted request; the push callbacks may fire any number of times
// while the connection stays open. All callbacks run on the owning loop.
type Callbacks struct {
	OnComplete         func(result reservation.Result)
	OnCountUpdate      func(remainingSlots int)
	OnFull             func()
	OnAllowedToProceed func()
	OnProceedTimeout   func()
	// OnConnLost fires when the connection drops after a completed request,
	// while the client is held open for push messages. A loss before
	// completion is reported through OnComplete instead.
	OnConnLost func()
}

type state int

const (
	stateIdle state = iota
	stateConnecting
	statePending
	stateOpen
	stateClosed
)

// Client is exclusively owned by the component that spawned it and is
// destroyed, not reused, at the end of every attempt.
type Client struct {
	loop *runtime.Loop
	cfg  Config
	cbs  Callbacks
	log  *logrus.Entry

	// loop-owned state
	state         state
	conn          beacon.Conn
	target        Target
	requestSent   bool
	completed     bool
	responseTimer *runtime.Handle
	dialCancel    context.CancelFunc
	recvCancel    context.CancelFunc
}

func New(loop *runtime.Loop, cfg Config, cbs Callbacks) *Client {
	return &Client{
		loop:  loop,
		cfg:   cfg,
		cbs:   cbs,
		log:   logrus.WithField("component", "beacon-client"),
		state: stateIdle,
	}
}

// RequestReservation opens a connection to the target and submits the party's
// reservation once connected.
func (c *Client) RequestReservation(scope *envelope.Scope, target Target, res reservation.PartyReservation) {
	c.loop.Post(func() {
		c.begin(scope, target, beacon.MsgReservationRequest, beacon.ReservationRequest{
			SessionID:   target.SessionID,
			Reservation: res,
		})
	})
}

// RequestEmptyServerReservation claims and configures an idle server in the
// same round trip as the reservation itself.
func (c *Client) RequestEmptyServerReservation(scope *envelope.Scope, target Target, res reservation.PartyReservation, cfg reservation.EmptyServerReservation) {
	c.loop.Post(func() {
		c.begin(scope, target, beacon.MsgReservationRequest, beacon.ReservationRequest{
			SessionID:   target.SessionID,
			Reservation: res,
			EmptyServer: &cfg,
		})
	})
}

// RequestReservationUpdate adds members to an existing reservation, reusing
// the open connection when there is one.
func (c *Client) RequestReservationUpdate(scope *envelope.Scope, target Target, res reservation.PartyReservation) {
	c.loop.Post(func() {
		if c.state == stateOpen {
			c.submit(beacon.MsgReservationUpdateRequest, beacon.ReservationRequest{
				SessionID:   target.SessionID,
				Reservation: res,
			})
			return
		}
		c.begin(scope, target, beacon.MsgReservationUpdateRequest, beacon.ReservationRequest{
			SessionID:   target.SessionID,
			Reservation: res,
		})
	})
}

// Reconnect is the dedicated path used after matchmaking succeeds: the party
// member list is rebuilt locally with fresh validation tokens and the
// expected ReservationDuplicate response means "the server already has me";
// callers treat it as success via Result.IsSuccess.
func (c *Client) Reconnect(scope *envelope.Scope, target Target, leaderID reservation.PlayerID, memberIDs []reservation.PlayerID) {
	res := reservation.NewPartyReservation(leaderID, memberIDs)
	c.RequestReservation(scope, target, res)
}

// CancelReservation withdraws the outstanding request. If a request actually
// reached the wire the host is told to cancel; otherwise the canceled result
// is synthesized locally without a round trip.
func (c *Client) CancelReservation(leaderID reservation.PlayerID) {
	c.loop.Post(func() {
		if c.requestSent && c.conn != nil {
			env, err := beacon.Wrap(beacon.MsgCancelReservationRequest, beacon.CancelReservationRequest{
				PartyLeaderID: leaderID,
			})
			if err == nil {
				// The sender goroutine takes ownership of the connection so
				// the teardown below cannot close it before the cancel
				// reaches the host.
				conn := c.conn
				c.conn = nil
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ResponseTimeout)
					defer cancel()
					_ = conn.Send(ctx, env)
					_ = conn.Close()
				}()
			}
		}
		c.finish(reservation.ReservationRequestCanceled)
		c.teardown()
	})
}

// Close tears the client down without firing any callback.
func (c *Client) Close() {
	c.loop.Post(func() {
		c.completed = true
		c.teardown()
	})
}

func (c *Client) begin(scope *envelope.Scope, target Target, msgType beacon.MessageType, req beacon.ReservationRequest) {
	if c.state == stateConnecting || c.state == statePending {
		scope.Log.Warn("beacon client busy, rejecting request")
		if c.cbs.OnComplete != nil {
			c.cbs.OnComplete(reservation.GeneralError)
		}
		return
	}

	// A previous attempt's connection, if any, is never reused.
	c.teardown()

	c.target = target
	c.state = stateConnecting
	c.completed = false
	c.requestSent = false

	dialCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	c.dialCancel = cancel

	go func() {
		conn, err := target.Dial(dialCtx)
		c.loop.Post(func() {
			if c.state != stateConnecting {
				// Canceled while dialing.
				if err == nil {
					_ = conn.Close()
				}
				return
			}
			if err != nil {
				scope.Log.WithError(err).Info("beacon connection failed")
				c.finish(reservation.GeneralError)
				c.teardown()
				return
			}
			c.conn = conn
			c.startRecv()
			c.submit(msgType, req)
		})
	}()
}

func (c *Client) submit(msgType beacon.MessageType, req beacon.ReservationRequest) {
	env, err := beacon.Wrap(msgType, req)
	if err != nil {
		c.finish(reservation.GeneralError)
		c.teardown()
		return
	}

	c.state = statePending
	c.completed = false
	c.requestSent = true
	c.responseTimer = c.loop.Schedule(c.cfg.ResponseTimeout, func() {
		c.finish(reservation.RequestTimedOut)
		c.teardown()
	})

	conn := c.conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ResponseTimeout)
		defer cancel()
		if err := conn.Send(ctx, env); err != nil {
			c.loop.Post(func() {
				if c.state == statePending {
					c.finish(reservation.GeneralError)
					c.teardown()
				}
			})
		}
	}()
}

func (c *Client) startRecv() {
	recvCtx, cancel := context.WithCancel(context.Background())
	c.recvCancel = cancel
	conn := c.conn
	go func() {
		for {
			env, err := conn.Recv(recvCtx)
			if err != nil {
				c.loop.Post(func() { c.onConnLost(conn) })
				return
			}
			c.loop.Post(func() { c.onEnvelope(conn, env) })
		}
	}()
}

func (c *Client) onEnvelope(conn beacon.Conn, env beacon.Envelope) {
	if conn != c.conn {
		return // stale pump from a previous attempt
	}
	switch env.Type {
	case beacon.MsgReservationResponse:
		var resp beacon.ReservationResponse
		if err := beacon.Unwrap(env, &resp); err != nil {
			c.finish(reservation.GeneralError)
			c.teardown()
			return
		}
		c.state = stateOpen
		c.finish(resp.Result)
	case beacon.MsgReservationCountUpdate:
		var count beacon.ReservationCountUpdate
		if err := beacon.Unwrap(env, &count); err == nil && c.cbs.OnCountUpdate != nil {
			c.cbs.OnCountUpdate(count.RemainingSlots)
		}
	case beacon.MsgReservationFull:
		if c.cbs.OnFull != nil {
			c.cbs.OnFull()
		}
	case beacon.MsgAllowedToProceed:
		if c.cbs.OnAllowedToProceed != nil {
			c.cbs.OnAllowedToProceed()
		}
	case beacon.MsgProceedTimeout:
		if c.cbs.OnProceedTimeout != nil {
			c.cbs.OnProceedTimeout()
		}
	}
}

func (c *Client) onConnLost(conn beacon.Conn) {
	if conn != c.conn {
		return
	}
	if c.state == statePending {
		c.finish(reservation.GeneralError)
	}
	open := c.state == stateOpen
	c.teardown()
	if open && c.cbs.OnConnLost != nil {
		c.cbs.OnConnLost()
	}
}

// finish delivers the terminal result for the current request exactly once.
func (c *Client) finish(result reservation.Result) {
	if c.completed {
		return
	}
	c.completed = true
	c.responseTimer.Cancel()
	c.responseTimer = nil
	if c.cbs.OnComplete != nil {
		c.cbs.OnComplete(result)
	}
}

func (c *Client) teardown() {
	c.responseTimer.Cancel()
	c.responseTimer = nil
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.recvCancel != nil {
		c.recvCancel()
		c.recvCancel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = stateClosed
}
