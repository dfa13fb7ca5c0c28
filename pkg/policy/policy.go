// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

// Package policy holds the per-attempt matchmaking strategies. Every policy
// exposes the same start/cancel surface and one terminal completion callback;
// the orchestrator never needs to know which strategy is running.
package policy

import (
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/envelope"
)

// Result is the terminal outcome of a matchmaking attempt.
type Result string

const (
	ResultSuccess       Result = "Success"
	ResultCancelled     Result = "Cancelled"
	ResultNoResults     Result = "NoResults"
	ResultFailure       Result = "Failure"
	ResultCreateFailure Result = "CreateFailure"
)

func (r Result) String() string {
	return string(r)
}

// CompleteFunc receives the attempt's outcome. chosen is non-nil only when
// result is ResultSuccess.
type CompleteFunc func(result Result, chosen *directory.SearchResult)

// Policy is one matchmaking strategy. StartMatchmaking may be called once per
// instance; CancelMatchmaking is safe at any point and still produces exactly
// one completion.
type Policy interface {
	Name() string
	StartMatchmaking(scope *envelope.Scope)
	CancelMatchmaking()
}
