// Copyright 2026 The Scouter Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"scouter/pkg/record"
)

// RedisMirror is a production Mirror backed by github.com/redis/go-redis/v9:
// plain GET/SET EX rather than a Lua-script round trip, since a profile
// mirror needs no atomic read-modify-write.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror builds a RedisMirror against a Redis instance at addr.
func NewRedisMirror(addr string) *RedisMirror {
	return &RedisMirror{client: redis.NewClient(&redis.Options{Addr: addr}), prefix: "scouter:profile:"}
}

func (m *RedisMirror) key(entityID int64) string {
	return m.prefix + strconv.FormatInt(entityID, 10)
}

func (m *RedisMirror) Get(ctx context.Context, entityID int64) (record.DriftProfile, bool, error) {
	raw, err := m.client.Get(ctx, m.key(entityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return record.DriftProfile{}, false, nil
	}
	if err != nil {
		return record.DriftProfile{}, false, fmt.Errorf("cache: redis get entity=%d: %w", entityID, err)
	}
	var profile record.DriftProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return record.DriftProfile{}, false, fmt.Errorf("cache: redis unmarshal entity=%d: %w", entityID, err)
	}
	return profile, true, nil
}

func (m *RedisMirror) Set(ctx context.Context, profile record.DriftProfile, ttl time.Duration) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("cache: redis marshal entity=%d: %w", profile.EntityID, err)
	}
	if err := m.client.Set(ctx, m.key(profile.EntityID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set entity=%d: %w", profile.EntityID, err)
	}
	return nil
}

// LoggingMirror is a dependency-free Mirror stand-in: it lets callers
// select the Redis-mirror code path in tests without a real Redis
// instance. Reads always miss.
type LoggingMirror struct {
	OnSet func(profile record.DriftProfile, ttl time.Duration)
}

func (LoggingMirror) Get(context.Context, int64) (record.DriftProfile, bool, error) {
	return record.DriftProfile{}, false, nil
}

func (m LoggingMirror) Set(_ context.Context, profile record.DriftProfile, ttl time.Duration) error {
	if m.OnSet != nil {
		m.OnSet(profile, ttl)
	}
	return nil
}
