// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package host implements the admission-control server side of the beacon
// protocol. One host serves one active session; it owns that session's
// reservation ledger exclusively and serializes every mutation on its own
// event loop, so the ledger needs no locking. Incoming requests and the
// periodic liveness sweep run as cases of the same loop and can never
// interleave.
package host

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/beacon"
	"github.com/ludare/partybeacon/pkg/metrics"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/reservation/ledger"
)

const sendTimeout = 5 * time.Second

// Membership answers whether a reserved player has actually shown up in the
// live game session. The owning game layer implements it.
type Membership interface {
	IsSessionMember(id reservation.PlayerID) bool
	IsSessionOwner(id reservation.PlayerID) bool
}

// ValidatePlayersFunc is the optional eligibility hook (ban checks and the
// like). Returning false vetoes an otherwise successful reservation.
type ValidatePlayersFunc func(members []reservation.PlayerReservation) bool

// Config carries the per-session knobs of one host.
type Config struct {
	SessionID      string
	SweepInterval  time.Duration
	Timeouts       reservation.Timeouts
	ProceedTimeout time.Duration
}

// Option configures a new host.
type Option func(*Host)

// WithValidateHook installs the external player validation hook.
func WithValidateHook(fn ValidatePlayersFunc) Option {
	return func(h *Host) { h.validate = fn }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m metrics.BeaconMetrics) Option {
	return func(h *Host) { h.metrics = m }
}

// Host is the reservation beacon server actor.
type Host struct {
	cfg      Config
	led      *ledger.Ledger
	mem      Membership
	validate ValidatePlayersFunc
	metrics  metrics.BeaconMetrics
	pool     *reservation.Pool
	log      *logrus.Entry

	inbox chan hostMsg
	quit  chan struct{}
	done  chan struct{}

	connSeq int64 // atomic

	// loop-owned state
	conns     map[int64]*hostConn
	deny      bool
	wasFull   bool
	lastSweep time.Time

	notifier notifier
}

type hostConn struct {
	id       int64
	conn     beacon.Conn
	out      chan beacon.Envelope
	closed   bool
	leaderID reservation.PlayerID

	proceedDeadline time.Time // zero when no gate is armed
	proceedGranted  bool

	cancelRead context.CancelFunc
}

type hostMsg interface{ isHostMsg() }

type attachMsg struct{ hc *hostConn }

type envelopeMsg struct {
	id  int64
	env beacon.Envelope
}

type connClosedMsg struct{ id int64 }

type grantProceedMsg struct{ leaderID reservation.PlayerID }

type setDenyMsg struct{ deny bool }

type detachMsg struct{ reply chan *ledger.State }

type statsMsg struct{ reply chan Stats }

func (attachMsg) isHostMsg()       {}
func (envelopeMsg) isHostMsg()     {}
func (connClosedMsg) isHostMsg()   {}
func (grantProceedMsg) isHostMsg() {}
func (setDenyMsg) isHostMsg()      {}
func (detachMsg) isHostMsg()       {}
func (statsMsg) isHostMsg()        {}

// Stats is a point-in-time view of the host, used by tests and the daemon's
// health endpoint.
type Stats struct {
	Connections   int
	Reservations  int
	ConsumedSlots int
	Full          bool
	Denying       bool
}

// New creates a host serving the given session and starts its event loop.
// The host takes exclusive ownership of the ledger.
func New(cfg Config, led *ledger.Ledger, mem Membership, opts ...Option) *Host {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	h := &Host{
		cfg:       cfg,
		led:       led,
		mem:       mem,
		pool:      reservation.NewPool(),
		log:       logrus.WithField("sessionID", cfg.SessionID),
		inbox:     make(chan hostMsg, 128),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		conns:     make(map[int64]*hostConn),
		lastSweep: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

// AttachConn hands an accepted connection to the host. The host owns the
// connection from here on and tears it down when the host closes. Attaching
// to a closed host closes the connection immediately.
func (h *Host) AttachConn(conn beacon.Conn) {
	readCtx, cancelRead := context.WithCancel(context.Background())
	hc := &hostConn{
		id:         atomic.AddInt64(&h.connSeq, 1),
		conn:       conn,
		out:        make(chan beacon.Envelope, 32),
		cancelRead: cancelRead,
	}
	if !h.post(attachMsg{hc: hc}) {
		cancelRead()
		_ = conn.Close()
		return
	}

	go func() { // write pump
		for env := range hc.out {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			err := conn.Send(ctx, env)
			cancel()
			if err != nil {
				return
			}
		}
	}()

	go func() { // read pump
		for {
			env, err := conn.Recv(readCtx)
			if err != nil {
				h.post(connClosedMsg{id: hc.id})
				return
			}
			h.post(envelopeMsg{id: hc.id, env: env})
		}
	}()
}

// GrantProceed tells a reconnected party it may travel to the session. The
// owning game layer calls this once everyone it waits on is ready.
func (h *Host) GrantProceed(leaderID reservation.PlayerID) {
	h.post(grantProceedMsg{leaderID: leaderID})
}

// SetDenyRequests switches the host in or out of the mode where every
// reservation request is rejected, e.g. mid-restart.
func (h *Host) SetDenyRequests(deny bool) {
	h.post(setDenyMsg{deny: deny})
}

// DetachLedger snapshots the ledger for carry-over to a successor host and
// leaves this host denying all further requests.
func (h *Host) DetachLedger() *ledger.State {
	reply := make(chan *ledger.State, 1)
	h.post(detachMsg{reply: reply})
	select {
	case state := <-reply:
		return state
	case <-h.done:
		return nil
	}
}

// Stats reports a consistent snapshot of the host's state.
func (h *Host) Stats() Stats {
	reply := make(chan Stats, 1)
	h.post(statsMsg{reply: reply})
	select {
	case s := <-reply:
		return s
	case <-h.done:
		return Stats{}
	}
}

// Close stops the event loop and deterministically tears down every attached
// connection.
func (h *Host) Close() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
	<-h.done
}

func (h *Host) post(msg hostMsg) bool {
	// The inbox is buffered, so the send below can win a race against an
	// already-closed host; check done first.
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.inbox <- msg:
		return true
	case <-h.done:
		return false
	}
}

func (h *Host) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			for _, hc := range h.conns {
				h.dropConn(hc)
			}
			// Connections attached while quitting are queued, never
			// dispatched; close them too so their pumps exit.
			for {
				select {
				case msg := <-h.inbox:
					if attach, ok := msg.(attachMsg); ok {
						h.dropConn(attach.hc)
					}
				default:
					return
				}
			}
		case now := <-ticker.C:
			h.sweep(now)
		case msg := <-h.inbox:
			h.dispatch(msg)
		}
	}
}

func (h *Host) dispatch(msg hostMsg) {
	switch m := msg.(type) {
	case attachMsg:
		h.conns[m.hc.id] = m.hc
	case envelopeMsg:
		if hc, ok := h.conns[m.id]; ok {
			h.handleEnvelope(hc, m.env)
		}
	case connClosedMsg:
		if hc, ok := h.conns[m.id]; ok {
			h.dropConn(hc)
			delete(h.conns, m.id)
		}
	case grantProceedMsg:
		h.grantProceed(m.leaderID)
	case setDenyMsg:
		h.deny = m.deny
	case detachMsg:
		h.deny = true
		m.reply <- h.led.Snapshot()
	case statsMsg:
		m.reply <- Stats{
			Connections:   len(h.conns),
			Reservations:  len(h.led.Reservations()),
			ConsumedSlots: h.led.ConsumedSlots(),
			Full:          h.led.IsBeaconFull(),
			Denying:       h.deny,
		}
	}
}

func (h *Host) dropConn(hc *hostConn) {
	if hc.closed {
		return
	}
	hc.closed = true
	hc.cancelRead()
	close(hc.out)
	_ = hc.conn.Close()
}

// send queues an envelope on one connection; a connection that cannot keep up
// is dropped rather than allowed to stall the loop. A request can drop its
// own connection mid-handling (a broadcast before the response), so sends to
// an already-dropped connection are silently discarded.
func (h *Host) send(hc *hostConn, env beacon.Envelope) {
	if hc.closed {
		return
	}
	select {
	case hc.out <- env:
	default:
		h.log.WithField("conn", hc.id).Warn("beacon connection backlogged, dropping")
		h.dropConn(hc)
		delete(h.conns, hc.id)
	}
}

func (h *Host) broadcast(env beacon.Envelope) {
	for _, hc := range h.conns {
		h.send(hc, env)
	}
}

func (h *Host) grantProceed(leaderID reservation.PlayerID) {
	env, _ := beacon.Wrap(beacon.MsgAllowedToProceed, nil)
	for _, hc := range h.conns {
		if hc.leaderID == leaderID {
			hc.proceedGranted = true
			hc.proceedDeadline = time.Time{}
			h.send(hc, env)
		}
	}
}
