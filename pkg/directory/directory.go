// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package directory specifies the session-discovery collaborator the
// matchmaking core consumes. The core only depends on this interface; the
// real discovery service lives elsewhere.
package directory

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by Join and Destroy for unknown sessions.
var ErrSessionNotFound = errors.New("directory: session not found")

// ErrSessionFull is returned by JoinSession when the session cannot admit
// more players.
var ErrSessionFull = errors.New("directory: session full")

// SessionSettings describes one advertised session.
type SessionSettings struct {
	SessionID  string `json:"session_id"`
	PlaylistID string `json:"playlist_id"`
	MaxPlayers int    `json:"max_players"`
	Private    bool   `json:"private"`
	Empty      bool   `json:"empty"`
	BeaconAddr string `json:"beacon_addr"`
}

// SearchResult is one candidate produced by FindSessions. Invalid results
// are skipped by the search pass but keep their index so the walk stays
// deterministic.
type SearchResult struct {
	SessionID  string          `json:"session_id"`
	BeaconAddr string          `json:"beacon_addr"`
	Settings   SessionSettings `json:"settings"`
	Invalid    bool            `json:"invalid"`
}

// Criteria filters a FindSessions query.
type Criteria struct {
	PlaylistID string `json:"playlist_id"`
	EmptyOnly  bool   `json:"empty_only"`
	MaxResults int    `json:"max_results"`
}

// SessionDirectory is the external session-discovery and lifecycle service.
// FindSessions honors ctx cancellation; all calls may block on I/O.
type SessionDirectory interface {
	FindSessions(ctx context.Context, criteria Criteria) ([]SearchResult, error)
	JoinSession(ctx context.Context, result SearchResult) error
	CreateSession(ctx context.Context, settings SessionSettings) error
	DestroySession(ctx context.Context, sessionID string) error
}
