// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "beacon:session:"

// Redis is a SessionDirectory backed by a shared redis instance. Each session
// advert is one JSON value; join counts live next to it so capacity checks
// stay atomic enough for advert purposes (the beacon host, not the directory,
// is authoritative for admission).
type Redis struct {
	rdb *redis.Client
}

func NewRedis(addr, password string) *Redis {
	return &Redis{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})}
}

// NewRedisFromClient wraps an existing client, mostly for tests.
func NewRedisFromClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

type redisAdvert struct {
	Settings SessionSettings `json:"settings"`
	Joined   int             `json:"joined"`
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (r *Redis) FindSessions(ctx context.Context, criteria Criteria) ([]SearchResult, error) {
	var results []SearchResult
	iter := r.rdb.Scan(ctx, 0, sessionKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := r.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("directory: read advert: %w", err)
		}
		var advert redisAdvert
		if err := json.Unmarshal([]byte(raw), &advert); err != nil {
			continue
		}
		s := advert.Settings
		if criteria.PlaylistID != "" && s.PlaylistID != criteria.PlaylistID {
			continue
		}
		if criteria.EmptyOnly && !s.Empty {
			continue
		}
		if s.Private {
			continue
		}
		results = append(results, SearchResult{
			SessionID:  s.SessionID,
			BeaconAddr: s.BeaconAddr,
			Settings:   s,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("directory: scan adverts: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].SessionID < results[j].SessionID })
	if criteria.MaxResults > 0 && len(results) > criteria.MaxResults {
		results = results[:criteria.MaxResults]
	}
	return results, nil
}

func (r *Redis) JoinSession(ctx context.Context, result SearchResult) error {
	key := sessionKey(result.SessionID)
	raw, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("directory: read advert: %w", err)
	}
	var advert redisAdvert
	if err := json.Unmarshal([]byte(raw), &advert); err != nil {
		return fmt.Errorf("directory: decode advert: %w", err)
	}
	if advert.Settings.MaxPlayers > 0 && advert.Joined >= advert.Settings.MaxPlayers {
		return ErrSessionFull
	}
	advert.Joined++
	advert.Settings.Empty = false
	return r.writeAdvert(ctx, advert)
}

func (r *Redis) CreateSession(ctx context.Context, settings SessionSettings) error {
	return r.writeAdvert(ctx, redisAdvert{Settings: settings})
}

func (r *Redis) DestroySession(ctx context.Context, sessionID string) error {
	deleted, err := r.rdb.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("directory: delete advert: %w", err)
	}
	if deleted == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Redis) writeAdvert(ctx context.Context, advert redisAdvert) error {
	raw, err := json.Marshal(advert)
	if err != nil {
		return fmt.Errorf("directory: encode advert: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(advert.Settings.SessionID), raw, 0).Err(); err != nil {
		return fmt.Errorf("directory: write advert: %w", err)
	}
	return nil
}
