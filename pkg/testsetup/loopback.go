// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"context"
	"errors"
	"sync"

	"github.com/ludare/partybeacon/pkg/beacon"
	"github.com/ludare/partybeacon/pkg/beacon/host"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/joinhelper"
)

// Loopback routes dials to in-process hosts by session id, replacing the
// network for tests.
type Loopback struct {
	mu    sync.Mutex
	hosts map[string]*host.Host
}

func NewLoopback() *Loopback {
	return &Loopback{hosts: make(map[string]*host.Host)}
}

// Register makes the host dialable under the given session id.
func (l *Loopback) Register(sessionID string, h *host.Host) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts[sessionID] = h
}

func (l *Loopback) Unregister(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, sessionID)
}

// Dialers is a joinhelper.DialerFactory backed by the registry. Dialing an
// unregistered session fails like an unreachable address would.
func (l *Loopback) Dialers() joinhelper.DialerFactory {
	return func(result directory.SearchResult) beacon.Dialer {
		sessionID := result.SessionID
		return func(ctx context.Context) (beacon.Conn, error) {
			l.mu.Lock()
			h, ok := l.hosts[sessionID]
			l.mu.Unlock()
			if !ok {
				return nil, errors.New("no route to session " + sessionID)
			}
			client, server := beacon.Pipe()
			h.AttachConn(server)
			return client, nil
		}
	}
}
