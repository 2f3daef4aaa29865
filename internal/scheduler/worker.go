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
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"scouter/internal/store"
	"scouter/pkg/record"
)

// runTick loads the profile and window, evaluates drift, and dispatches
// alerts for one already-claimed entity. Any failure releases the entity
// back to pending with a backoff-computed next_run; success completes it
// with next_run = cron.next_after(now).
func (s *Scheduler) runTick(logger *zap.Logger, entity record.DriftEntity) {
	start := time.Now()
	ctx := context.Background()
	log := logger.With(
		zap.Int64("entity_id", entity.ID),
		zap.String("drift_type", string(entity.DriftType)),
	)

	profile, ok, err := s.loadProfile(ctx, entity.ID)
	if err != nil {
		s.failTick(ctx, log, entity, "load_profile", err)
		s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
		return
	}
	if !ok {
		// No profile yet: nothing to evaluate against. Complete the tick
		// anyway so the entity keeps its schedule rather than spinning.
		log.Warn("no profile registered for entity, skipping evaluation")
		s.completeTick(ctx, log, entity, start)
		return
	}

	now := time.Now().UTC()
	win := s.computeWindow(entity, now)

	slice, err := s.st.ReadWindow(ctx, entity.ID, entity.DriftType, win, featuresOrMetrics(profile))
	if err != nil {
		s.failTick(ctx, log, entity, "read_window", err)
		s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
		return
	}

	ev, err := selectEvaluator(entity.DriftType)
	if err != nil {
		s.failTick(ctx, log, entity, "select_evaluator", err)
		s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
		return
	}

	fired, err := ev.Evaluate(profile, slice, now)
	if err != nil {
		s.failTick(ctx, log, entity, "evaluate", err)
		s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
		return
	}

	if len(fired) > 0 {
		alerts := make([]record.DriftAlert, 0, len(fired))
		for _, f := range fired {
			alert, err := record.NewDriftAlert(f, now)
			if err != nil {
				s.failTick(ctx, log, entity, "build_alert", err)
				s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
				return
			}
			alerts = append(alerts, alert)
		}
		if err := s.st.InsertAlerts(ctx, entity.ID, alerts); err != nil {
			s.failTick(ctx, log, entity, "insert_alerts", err)
			s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
			return
		}
		s.opts.Metrics.IncAlertsFired(entity.DriftType, len(alerts))
		s.opts.Dispatcher.Dispatch(ctx, entity, alerts)
	}

	s.resetFailures(entity.ID)
	s.completeTick(ctx, log, entity, start)
}

// loadProfile consults the cache before falling back to the store.
func (s *Scheduler) loadProfile(ctx context.Context, entityID int64) (record.DriftProfile, bool, error) {
	if p, ok := s.opts.Cache.Get(ctx, entityID); ok {
		return p, true, nil
	}
	p, err := s.st.GetProfile(ctx, entityID)
	if err != nil {
		var se *store.Error
		if errors.As(err, &se) && se.Kind == store.NotFound {
			return record.DriftProfile{}, false, nil
		}
		return record.DriftProfile{}, false, err
	}
	s.opts.Cache.Put(ctx, p)
	return p, true, nil
}

// computeWindow returns [entity.PreviousRun, now), clamped to at most
// MaxLookback wide. A zero PreviousRun (first-ever tick) clamps to
// now-MaxLookback.
func (s *Scheduler) computeWindow(entity record.DriftEntity, now time.Time) record.Window {
	start := entity.PreviousRun
	if start.IsZero() || now.Sub(start) > s.opts.MaxLookback {
		start = now.Add(-s.opts.MaxLookback)
	}
	return record.Window{Start: start, End: now}
}

func featuresOrMetrics(p record.DriftProfile) []string {
	switch p.Kind {
	case record.SPC:
		if p.SPC == nil {
			return nil
		}
		return p.SPC.FeaturesToMonitor
	case record.PSI:
		if p.PSI == nil {
			return nil
		}
		return p.PSI.FeaturesToMonitor
	case record.Custom:
		if p.Custom == nil {
			return nil
		}
		names := make([]string, 0, len(p.Custom.Metrics))
		for name := range p.Custom.Metrics {
			names = append(names, name)
		}
		return names
	case record.LLM:
		if p.LLM == nil {
			return nil
		}
		names := make([]string, 0, len(p.LLM.Metrics))
		for name := range p.LLM.Metrics {
			names = append(names, name)
		}
		return names
	default:
		return nil
	}
}

func (s *Scheduler) completeTick(ctx context.Context, log *zap.Logger, entity record.DriftEntity, start time.Time) {
	now := time.Now().UTC()
	nextRun, err := nextAfter(entity.Schedule, now)
	if err != nil {
		s.failTick(ctx, log, entity, "compute_next_run", err)
		return
	}
	if err := s.st.CompleteEntity(ctx, entity.ID, now, nextRun); err != nil {
		log.Error("complete_entity failed", zap.Error(err))
		s.opts.Metrics.ObserveTick(entity.DriftType, "error", time.Since(start))
		return
	}
	s.opts.Metrics.ObserveTick(entity.DriftType, "success", time.Since(start))
}

// failTick releases entity back to pending with a backoff-computed
// next_run and logs the failing stage.
func (s *Scheduler) failTick(ctx context.Context, log *zap.Logger, entity record.DriftEntity, stage string, cause error) {
	attempt := s.incFailures(entity.ID)
	log.Error("tick failed, releasing entity",
		zap.String("stage", stage),
		zap.Int64("consecutive_failures", attempt),
		zap.Error(cause),
	)
	if attempt >= int64(s.opts.SustainedFailureThreshold) {
		s.opts.Metrics.IncSustainedFailure(entity.ID)
	}
	// attempt counts from 1; Delay counts the first failure as 0.
	next := time.Now().UTC().Add(s.opts.Backoff.Delay(int(attempt) - 1))
	if err := s.st.ReleaseEntity(ctx, entity.ID, &next); err != nil {
		log.Error("release_entity failed after tick failure", zap.Error(err))
	}
}

func (s *Scheduler) incFailures(entityID int64) int64 {
	v, _ := s.failureCount.LoadOrStore(entityID, new(int64))
	counter := v.(*int64)
	return atomic.AddInt64(counter, 1)
}

func (s *Scheduler) resetFailures(entityID int64) {
	s.failureCount.Delete(entityID)
}
