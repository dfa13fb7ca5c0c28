// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package beacon

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send and Recv after the connection is closed from
// either side.
var ErrClosed = errors.New("beacon: connection closed")

// Conn is one reliable ordered connection between a reservation client and a
// reservation host. Messages are delivered in send order. Implementations
// must make Close idempotent and must unblock pending Recv calls on close.
type Conn interface {
	Send(ctx context.Context, env Envelope) error
	Recv(ctx context.Context) (Envelope, error)
	Close() error
}

// Dialer establishes a connection to a host's beacon endpoint. The client
// owns the returned connection.
type Dialer func(ctx context.Context) (Conn, error)

type pipeConn struct {
	send chan<- Envelope
	recv <-chan Envelope

	local  chan struct{} // closed when this side closes
	remote chan struct{} // closed when the peer closes
	once   sync.Once
}

// Pipe returns two connected in-process connections, used by tests and by a
// host and client living in the same process.
func Pipe() (Conn, Conn) {
	aToB := make(chan Envelope, 32)
	bToA := make(chan Envelope, 32)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &pipeConn{send: aToB, recv: bToA, local: aDone, remote: bDone}
	b := &pipeConn{send: bToA, recv: aToB, local: bDone, remote: aDone}
	return a, b
}

func (p *pipeConn) Send(ctx context.Context, env Envelope) error {
	select {
	case <-p.local:
		return ErrClosed
	case <-p.remote:
		return ErrClosed
	default:
	}
	select {
	case p.send <- env:
		return nil
	case <-p.local:
		return ErrClosed
	case <-p.remote:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Recv(ctx context.Context) (Envelope, error) {
	// Drain messages already in flight before reporting a close, so an
	// ordered response sent just before teardown is not lost.
	select {
	case env := <-p.recv:
		return env, nil
	default:
	}
	select {
	case env := <-p.recv:
		return env, nil
	case <-p.local:
		return Envelope{}, ErrClosed
	case <-p.remote:
		return Envelope{}, ErrClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.local) })
	return nil
}
