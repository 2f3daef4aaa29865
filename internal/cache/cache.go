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

// Package cache implements the (entity_id -> profile) cache the scheduler
// reads through before falling back to the store: an in-process map with
// per-entry TTL and LRU eviction at a size cap, generalized from a
// sync.Map-of-entries-with-an-atomically-updated-lastAccessed pattern
// reaped by a periodic eviction loop.
//
// A cache miss always falls through to the store; invalidation here is
// strictly a performance optimization, never a correctness requirement.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"scouter/pkg/record"
)

// Mirror is an optional second-tier write-through cache (e.g. Redis) so
// multiple scheduler processes share warm profiles. A nil Mirror disables
// the tier entirely.
type Mirror interface {
	Get(ctx context.Context, entityID int64) (record.DriftProfile, bool, error)
	Set(ctx context.Context, profile record.DriftProfile, ttl time.Duration) error
}

// Options configures a Cache. Zero values fall back to documented defaults.
type Options struct {
	Size   int           // default 1024
	TTL    time.Duration // default 60s
	Mirror Mirror        // optional second tier, nil disables it
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 1024
	}
	if o.TTL <= 0 {
		o.TTL = 60 * time.Second
	}
	return o
}

type entry struct {
	entityID int64
	profile  record.DriftProfile
	expires  time.Time
	elem     *list.Element
}

// Cache is a size-capped, TTL-expiring, LRU-evicting profile cache. It
// implements internal/scheduler.ProfileCache.
type Cache struct {
	opts Options

	mu      sync.Mutex
	entries map[int64]*entry
	order   *list.List // front = most recently used
}

// New constructs a Cache with opts (zero value uses documented defaults).
func New(opts Options) *Cache {
	return &Cache{
		opts:    opts.withDefaults(),
		entries: make(map[int64]*entry),
		order:   list.New(),
	}
}

// Get returns the cached profile for entityID, consulting the optional
// Mirror on a local miss. A local hit past its TTL is treated as a miss
// and evicted.
func (c *Cache) Get(ctx context.Context, entityID int64) (record.DriftProfile, bool) {
	c.mu.Lock()
	e, ok := c.entries[entityID]
	if ok {
		if time.Now().After(e.expires) {
			c.removeLocked(e)
			ok = false
		} else {
			c.order.MoveToFront(e.elem)
			profile := e.profile
			c.mu.Unlock()
			return profile, true
		}
	}
	c.mu.Unlock()

	if !ok && c.opts.Mirror != nil {
		if profile, found, err := c.opts.Mirror.Get(ctx, entityID); err == nil && found {
			c.Put(ctx, profile)
			return profile, true
		}
	}
	return record.DriftProfile{}, false
}

// Put stores profile, evicting the least-recently-used entry if the cache
// is at capacity, and write-through-mirrors it if a Mirror is configured.
func (c *Cache) Put(ctx context.Context, profile record.DriftProfile) {
	c.mu.Lock()
	if existing, ok := c.entries[profile.EntityID]; ok {
		existing.profile = profile
		existing.expires = time.Now().Add(c.opts.TTL)
		c.order.MoveToFront(existing.elem)
		c.mu.Unlock()
	} else {
		e := &entry{entityID: profile.EntityID, profile: profile, expires: time.Now().Add(c.opts.TTL)}
		e.elem = c.order.PushFront(e)
		c.entries[profile.EntityID] = e
		c.evictOverCapacityLocked()
		c.mu.Unlock()
	}

	if c.opts.Mirror != nil {
		_ = c.opts.Mirror.Set(ctx, profile, c.opts.TTL)
	}
}

// Invalidate drops entityID from the local tier only; the mirror, if any,
// is left untouched (best-effort only).
func (c *Cache) Invalidate(entityID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[entityID]; ok {
		c.removeLocked(e)
	}
}

// Len reports the number of locally cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOverCapacityLocked() {
	for len(c.entries) > c.opts.Size {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeLocked(back.Value.(*entry))
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.entityID)
}
