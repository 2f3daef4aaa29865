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

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"scouter/internal/store"
	"scouter/internal/store/storetest"
	"scouter/pkg/record"
)

func TestComputeWindowClampsToMaxLookback(t *testing.T) {
	st := storetest.New()
	sched := New(st, Options{MaxLookback: time.Hour})

	now := time.Now().UTC()
	entity := record.DriftEntity{PreviousRun: now.Add(-48 * time.Hour)}
	win := sched.computeWindow(entity, now)
	if win.Start.Before(now.Add(-time.Hour).Add(-time.Millisecond)) {
		t.Fatalf("window start %v not clamped to maxLookback before %v", win.Start, now.Add(-time.Hour))
	}

	entity = record.DriftEntity{PreviousRun: now.Add(-time.Minute)}
	win = sched.computeWindow(entity, now)
	if !win.Start.Equal(now.Add(-time.Minute)) {
		t.Fatalf("window start %v, want previous_run %v unclamped", win.Start, now.Add(-time.Minute))
	}
}

func TestFeaturesOrMetrics(t *testing.T) {
	spc := record.DriftProfile{Kind: record.SPC, SPC: &record.SPCProfile{FeaturesToMonitor: []string{"a", "b"}}}
	if got := featuresOrMetrics(spc); len(got) != 2 {
		t.Fatalf("SPC: got %v", got)
	}

	custom := record.DriftProfile{Kind: record.Custom, Custom: &record.CustomProfile{
		Metrics: map[string]record.CustomMetric{"latency_ms": {}},
	}}
	if got := featuresOrMetrics(custom); len(got) != 1 || got[0] != "latency_ms" {
		t.Fatalf("Custom: got %v", got)
	}
}

// failingReadWindowStore wraps a Fake and fails ReadWindow exactly
// `remaining` times before delegating, letting the test observe the scheduler's
// failure/backoff/release path without a real Postgres.
type failingReadWindowStore struct {
	*storetest.Fake
	remaining int
}

func (f *failingReadWindowStore) ReadWindow(ctx context.Context, entityID int64, driftType record.DriftType, window record.Window, features []string) (record.WindowSlice, error) {
	if f.remaining > 0 {
		f.remaining--
		return record.WindowSlice{}, &store.Error{Kind: store.Connection, Op: "read_window", Err: errors.New("boom")}
	}
	return f.Fake.ReadWindow(ctx, entityID, driftType, window, features)
}

// TestTickFailureReleasesWithBackoffThenRecovers exercises failTick: a
// failing read_window releases the entity to pending with a future
// next_run, and once the dependency recovers the entity completes
// normally and its failure counter resets. The claim-uniqueness invariant
// still holds across retries, since release puts the entity back in the
// pending pool for any worker to reclaim.
func TestTickFailureReleasesWithBackoffThenRecovers(t *testing.T) {
	base := storetest.New()
	st := &failingReadWindowStore{Fake: base, remaining: 1}

	now := time.Now().UTC()
	entity := registerEntity(t, base, now.Add(-time.Second))

	sched := New(st, Options{Workers: 1, PollInterval: 5 * time.Millisecond, MaxLookback: time.Hour})

	beforeReleaseNow := time.Now().UTC()
	sched.runTick(sched.opts.Logger, entity)
	got, ok := base.Entity(entity.ID)
	if !ok {
		t.Fatalf("entity vanished")
	}
	if got.Status != record.StatusPending {
		t.Fatalf("status=%v after failure, want pending (released)", got.Status)
	}
	if !got.NextRun.After(beforeReleaseNow) {
		t.Fatalf("next_run %v not pushed into the future after failure", got.NextRun)
	}
	if v, ok := sched.failureCount.Load(entity.ID); !ok || *(v.(*int64)) != 1 {
		t.Fatalf("expected 1 recorded consecutive failure")
	}

	sched.runTick(sched.opts.Logger, entity)
	if _, ok := sched.failureCount.Load(entity.ID); ok {
		t.Fatalf("failure counter not reset after a successful tick")
	}
}
