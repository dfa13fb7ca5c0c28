// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package testsetup

import (
	"context"
	"sync"
	"time"

	"github.com/ludare/partybeacon/pkg/directory"
)

// StubDirectory returns scripted results and records calls. FindDelay makes
// the query interruptible so cancellation paths can be exercised.
type StubDirectory struct {
	Results   []directory.SearchResult
	FindErr   error
	JoinErr   error
	FindDelay time.Duration

	mu         sync.Mutex
	findCalls  int
	joinCalls  []string
	destroyed  []string
}

func (s *StubDirectory) FindSessions(ctx context.Context, criteria directory.Criteria) ([]directory.SearchResult, error) {
	s.mu.Lock()
	s.findCalls++
	s.mu.Unlock()
	if s.FindDelay > 0 {
		select {
		case <-time.After(s.FindDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.FindErr != nil {
		return nil, s.FindErr
	}
	results := make([]directory.SearchResult, len(s.Results))
	copy(results, s.Results)
	return results, nil
}

func (s *StubDirectory) JoinSession(ctx context.Context, result directory.SearchResult) error {
	s.mu.Lock()
	s.joinCalls = append(s.joinCalls, result.SessionID)
	s.mu.Unlock()
	return s.JoinErr
}

func (s *StubDirectory) CreateSession(ctx context.Context, settings directory.SessionSettings) error {
	return nil
}

func (s *StubDirectory) DestroySession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	s.destroyed = append(s.destroyed, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *StubDirectory) FindCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls
}

func (s *StubDirectory) JoinCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([]string, len(s.joinCalls))
	copy(calls, s.joinCalls)
	return calls
}

func (s *StubDirectory) Destroyed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.destroyed))
	copy(ids, s.destroyed)
	return ids
}
