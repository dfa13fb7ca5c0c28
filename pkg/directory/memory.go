// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process SessionDirectory used by the host daemon and by
// tests. Sessions are returned in stable SessionID order so candidate walks
// are deterministic.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
}

type memorySession struct {
	settings SessionSettings
	joined   int
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*memorySession)}
}

func (m *Memory) FindSessions(ctx context.Context, criteria Criteria) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]SearchResult, 0, len(m.sessions))
	for _, s := range m.sessions {
		if criteria.PlaylistID != "" && s.settings.PlaylistID != criteria.PlaylistID {
			continue
		}
		if criteria.EmptyOnly && !s.settings.Empty {
			continue
		}
		if s.settings.Private {
			continue
		}
		results = append(results, SearchResult{
			SessionID:  s.settings.SessionID,
			BeaconAddr: s.settings.BeaconAddr,
			Settings:   s.settings,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SessionID < results[j].SessionID })
	if criteria.MaxResults > 0 && len(results) > criteria.MaxResults {
		results = results[:criteria.MaxResults]
	}
	return results, nil
}

func (m *Memory) JoinSession(ctx context.Context, result SearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[result.SessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if s.settings.MaxPlayers > 0 && s.joined >= s.settings.MaxPlayers {
		return ErrSessionFull
	}
	s.joined++
	s.settings.Empty = false
	return nil
}

func (m *Memory) CreateSession(ctx context.Context, settings SessionSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[settings.SessionID] = &memorySession{settings: settings}
	return nil
}

func (m *Memory) DestroySession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}
