// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package utils

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Contains return true if val exist in list, else return false.
func Contains[T comparable](list []T, val T) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}

// GenerateUUID generates uuid without hyphens.
func GenerateUUID() string {
	id, _ := uuid.NewRandom()
	return strings.ReplaceAll(id.String(), "-", "")
}

// GenerateSessionID generates a lexicographically sortable session identifier.
func GenerateSessionID() string {
	return ulid.Make().String()
}

// HasSameElement reports whether s1 and s2 contain the same set of values,
// ignoring order.
func HasSameElement[T comparable](s1, s2 []T) bool {
	if len(s1) != len(s2) {
		return false
	}
	m1 := make(map[T]bool, len(s1))
	for _, v := range s1 {
		m1[v] = true
	}
	for _, v := range s2 {
		if !m1[v] {
			return false
		}
	}
	return true
}

// GenerateRandomInt generate a random int that is not determined
func GenerateRandomInt(n int) int {
	source := rand.NewSource(time.Now().UnixNano())
	random := rand.New(source)

	return random.Intn(n)
}
