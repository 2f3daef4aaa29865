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

// Package storetest provides an in-memory store.Store implementation for
// unit tests that need realistic claim/write/read semantics without a
// Postgres instance.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"scouter/internal/store"
	"scouter/pkg/record"
)

type observationKey struct {
	entityID int64
	feature  string
	binID    int
	at       time.Time
}

// Fake is a single-process, mutex-guarded Store. It enforces the same
// natural-key idempotency and atomic-claim semantics the Postgres
// implementation provides, making it suitable for the scheduler/evaluator
// unit and property tests.
type Fake struct {
	mu sync.Mutex

	entities     map[int64]record.DriftEntity
	nextEntityID int64
	profiles     map[int64]record.DriftProfile
	alerts       map[int64][]record.DriftAlert
	alertKeys    map[int64]map[time.Time]bool

	spc    map[observationKey]record.SPCRecord
	psi    map[observationKey]record.PSIRecord
	custom map[observationKey]record.CustomRecord
	llm    map[observationKey]record.LLMRecord
}

// New constructs an empty Fake store.
func New() *Fake {
	return &Fake{
		entities:  map[int64]record.DriftEntity{},
		profiles:  map[int64]record.DriftProfile{},
		alerts:    map[int64][]record.DriftAlert{},
		alertKeys: map[int64]map[time.Time]bool{},
		spc:       map[observationKey]record.SPCRecord{},
		psi:       map[observationKey]record.PSIRecord{},
		custom:    map[observationKey]record.CustomRecord{},
		llm:       map[observationKey]record.LLMRecord{},
	}
}

func (f *Fake) RegisterEntity(ctx context.Context, entity record.DriftEntity) (record.DriftEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entities {
		if e.Space == entity.Space && e.Name == entity.Name && e.Version == entity.Version && e.DriftType == entity.DriftType {
			return e, nil
		}
	}
	f.nextEntityID++
	entity.ID = f.nextEntityID
	if entity.Status == "" {
		entity.Status = record.StatusPending
	}
	f.entities[entity.ID] = entity
	return entity, nil
}

func (f *Fake) PutProfile(ctx context.Context, profile record.DriftProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.EntityID] = profile
	return nil
}

func (f *Fake) GetProfile(ctx context.Context, entityID int64) (record.DriftProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[entityID]
	if !ok {
		return record.DriftProfile{}, &store.Error{Kind: store.NotFound, Op: "get_profile"}
	}
	return p, nil
}

func (f *Fake) WriteBatch(ctx context.Context, driftType record.DriftType, records []record.ObservationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		switch driftType {
		case record.SPC:
			rec := r.(record.SPCRecord)
			f.spc[observationKey{rec.EntityID, rec.Feature, 0, rec.CreatedAt}] = rec
		case record.PSI:
			rec := r.(record.PSIRecord)
			key := observationKey{rec.EntityID, rec.Feature, rec.BinID, rec.CreatedAt}
			if existing, ok := f.psi[key]; ok {
				existing.BinCount = rec.BinCount // idempotent replace, not accumulate
				f.psi[key] = existing
				continue
			}
			f.psi[key] = rec
		case record.Custom:
			rec := r.(record.CustomRecord)
			f.custom[observationKey{rec.EntityID, rec.Metric, 0, rec.CreatedAt}] = rec
		case record.LLM:
			rec := r.(record.LLMRecord)
			f.llm[observationKey{rec.EntityID, rec.Metric, 0, rec.CreatedAt}] = rec
		}
	}
	return nil
}

func (f *Fake) ReadWindow(ctx context.Context, entityID int64, driftType record.DriftType, window record.Window, features []string) (record.WindowSlice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := map[string]bool{}
	for _, feat := range features {
		wanted[feat] = true
	}
	inWindow := func(t time.Time) bool {
		return !t.Before(window.Start) && t.Before(window.End)
	}
	allowed := func(name string) bool {
		return len(wanted) == 0 || wanted[name]
	}

	slice := record.WindowSlice{Window: window}
	switch driftType {
	case record.SPC:
		byFeature := map[string][]record.SPCPoint{}
		for k, rec := range f.spc {
			if k.entityID != entityID || !inWindow(k.at) || !allowed(rec.Feature) {
				continue
			}
			byFeature[rec.Feature] = append(byFeature[rec.Feature], record.SPCPoint{CreatedAt: rec.CreatedAt, Value: rec.Value})
		}
		for feature, points := range byFeature {
			sort.Slice(points, func(i, j int) bool { return points[i].CreatedAt.Before(points[j].CreatedAt) })
			slice.SPC = append(slice.SPC, record.SPCSeries{Feature: feature, Points: points})
		}
		sort.Slice(slice.SPC, func(i, j int) bool { return slice.SPC[i].Feature < slice.SPC[j].Feature })

	case record.PSI:
		counts := map[string]map[int]int64{}
		for k, rec := range f.psi {
			if k.entityID != entityID || !inWindow(k.at) || !allowed(rec.Feature) {
				continue
			}
			if counts[rec.Feature] == nil {
				counts[rec.Feature] = map[int]int64{}
			}
			counts[rec.Feature][rec.BinID] += rec.BinCount
		}
		for feature, byBin := range counts {
			var total int64
			for _, c := range byBin {
				total += c
			}
			if total <= int64(10*len(byBin)) {
				continue
			}
			slice.PSI = append(slice.PSI, record.PSICounts{Feature: feature, Counts: byBin, Total: total})
		}
		sort.Slice(slice.PSI, func(i, j int) bool { return slice.PSI[i].Feature < slice.PSI[j].Feature })

	case record.Custom, record.LLM:
		sums := map[string]float64{}
		counts := map[string]int64{}
		source := f.custom
		if driftType == record.LLM {
			for k, rec := range f.llm {
				if k.entityID != entityID || !inWindow(k.at) || !allowed(rec.Metric) {
					continue
				}
				sums[rec.Metric] += rec.Value
				counts[rec.Metric]++
			}
		} else {
			for k, rec := range source {
				if k.entityID != entityID || !inWindow(k.at) || !allowed(rec.Metric) {
					continue
				}
				sums[rec.Metric] += rec.Value
				counts[rec.Metric]++
			}
		}
		for metric, sum := range sums {
			slice.Custom = append(slice.Custom, record.MetricAverage{Metric: metric, Average: sum / float64(counts[metric]), Count: counts[metric]})
		}
		sort.Slice(slice.Custom, func(i, j int) bool { return slice.Custom[i].Metric < slice.Custom[j].Metric })
	}
	return slice, nil
}

func (f *Fake) ClaimDueEntity(ctx context.Context, now time.Time) (record.DriftEntity, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *record.DriftEntity
	for id, e := range f.entities {
		if !e.Active || e.Status != record.StatusPending || !e.NextRun.Before(now) {
			continue
		}
		if best == nil || e.NextRun.Before(best.NextRun) || (e.NextRun.Equal(best.NextRun) && id < best.ID) {
			ec := e
			best = &ec
		}
	}
	if best == nil {
		return record.DriftEntity{}, false, nil
	}
	best.Status = record.StatusProcessing
	f.entities[best.ID] = *best
	return *best, true, nil
}

func (f *Fake) CompleteEntity(ctx context.Context, entityID int64, now, nextRun time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[entityID]
	if !ok {
		return &store.Error{Kind: store.NotFound, Op: "complete_entity"}
	}
	e.Status = record.StatusPending
	e.PreviousRun = now
	e.NextRun = nextRun
	f.entities[entityID] = e
	return nil
}

func (f *Fake) ReleaseEntity(ctx context.Context, entityID int64, nextRun *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[entityID]
	if !ok {
		return &store.Error{Kind: store.NotFound, Op: "release_entity"}
	}
	e.Status = record.StatusPending
	if nextRun != nil {
		e.NextRun = *nextRun
	}
	f.entities[entityID] = e
	return nil
}

func (f *Fake) InsertAlerts(ctx context.Context, entityID int64, alerts []record.DriftAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertKeys[entityID] == nil {
		f.alertKeys[entityID] = map[time.Time]bool{}
	}
	for _, a := range alerts {
		if f.alertKeys[entityID][a.CreatedAt] {
			continue // ON CONFLICT DO NOTHING on (entity_id, created_at)
		}
		f.alertKeys[entityID][a.CreatedAt] = true
		f.alerts[entityID] = append(f.alerts[entityID], a)
	}
	return nil
}

func (f *Fake) ArchiveOlderThan(ctx context.Context, driftType record.DriftType, horizon time.Time) error {
	return nil
}

// Alerts returns all persisted alerts for entityID, for test assertions.
func (f *Fake) Alerts(entityID int64) []record.DriftAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record.DriftAlert(nil), f.alerts[entityID]...)
}

// Entity returns the current row for entityID, for test assertions.
func (f *Fake) Entity(entityID int64) (record.DriftEntity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entities[entityID]
	return e, ok
}

var _ store.Store = (*Fake)(nil)
