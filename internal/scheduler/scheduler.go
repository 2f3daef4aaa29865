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
	"sync"
	"time"

	"go.uber.org/zap"

	"scouter/internal/backoff"
	"scouter/internal/evaluator"
	"scouter/internal/store"
	"scouter/pkg/record"
)

// ProfileCache is the narrow (entity_id -> profile) cache surface the
// scheduler reads through: an in-memory TTL+size-capped cache backed by
// internal/cache, kept as an interface here so scheduler can be unit
// tested without it.
type ProfileCache interface {
	Get(ctx context.Context, entityID int64) (record.DriftProfile, bool)
	Put(ctx context.Context, profile record.DriftProfile)
}

// AlertDispatcher is the alert-emitter surface the scheduler forwards fired
// alerts to, after they've been durably inserted. Dispatch must never
// return an error that the scheduler should fail the tick on — failures
// are the dispatcher's own concern to log; this interface exists purely so
// the scheduler can observe dispatch attempts for its own logging.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, entity record.DriftEntity, alerts []record.DriftAlert)
}

// Metrics is the narrow telemetry surface the scheduler reports through.
type Metrics interface {
	ObserveClaimLatency(d time.Duration)
	ObserveTick(driftType record.DriftType, outcome string, d time.Duration)
	IncAlertsFired(driftType record.DriftType, n int)
	IncSustainedFailure(entityID int64)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveClaimLatency(time.Duration)                          {}
func (NoopMetrics) ObserveTick(record.DriftType, string, time.Duration)        {}
func (NoopMetrics) IncAlertsFired(record.DriftType, int)                      {}
func (NoopMetrics) IncSustainedFailure(int64)                                 {}

// NoopDispatcher drops every alert. Useful for tests, and the default when
// Options.Dispatcher is nil.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, record.DriftEntity, []record.DriftAlert) {}

// Options configures a Scheduler. Zero values fall back to documented
// defaults.
type Options struct {
	Workers        int           // W, default 4
	PollInterval   time.Duration // default 1s
	PollJitter     float64       // default 0.2 (±20%)
	MaxLookback    time.Duration // default 24h
	DrainTimeout   time.Duration // T_drain, default 30s
	Backoff        backoff.Policy
	Cache          ProfileCache
	Dispatcher     AlertDispatcher
	Metrics        Metrics
	Logger         *zap.Logger
	// SustainedFailureThreshold is the number of consecutive tick failures
	// after which a profile is considered to have a "sustained failure"
	// for metrics purposes; it is never auto-disabled.
	SustainedFailureThreshold int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.PollJitter == 0 {
		o.PollJitter = 0.2
	}
	if o.MaxLookback <= 0 {
		o.MaxLookback = 24 * time.Hour
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 30 * time.Second
	}
	if o.Backoff == (backoff.Policy{}) {
		o.Backoff = backoff.Scheduler()
	}
	if o.Cache == nil {
		o.Cache = noopCache{}
	}
	if o.Dispatcher == nil {
		o.Dispatcher = NoopDispatcher{}
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.SustainedFailureThreshold <= 0 {
		o.SustainedFailureThreshold = 10
	}
	return o
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (record.DriftProfile, bool) { return record.DriftProfile{}, false }
func (noopCache) Put(context.Context, record.DriftProfile)               {}

// Scheduler runs Options.Workers worker loops against a Store, each
// claiming, evaluating, and completing one entity per iteration. Each
// worker's claim loop drains gracefully on shutdown rather than abandoning
// an in-flight claim.
type Scheduler struct {
	st   store.Store
	opts Options

	failureCount sync.Map // entityID -> *int64 consecutive failures

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Scheduler over st.
func New(st store.Store, opts Options) *Scheduler {
	return &Scheduler{st: st, opts: opts.withDefaults(), stopCh: make(chan struct{})}
}

// Start launches Options.Workers worker goroutines. It returns
// immediately; call Stop for a graceful shutdown.
func (s *Scheduler) Start() {
	s.opts.Logger.Info("scheduler starting", zap.Int("workers", s.opts.Workers))
	s.wg.Add(s.opts.Workers)
	for i := 0; i < s.opts.Workers; i++ {
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
}

// Stop signals every worker to finish its current tick and exit, waiting
// up to DrainTimeout before giving up.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.opts.Logger.Info("scheduler stopped cleanly")
	case <-time.After(s.opts.DrainTimeout):
		s.opts.Logger.Warn("scheduler drain timeout exceeded, abandoning workers")
	}
}

func (s *Scheduler) workerLoop(id int) {
	logger := s.opts.Logger.With(zap.Int("worker_id", id))
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		claimStart := time.Now()
		ctx := context.Background()
		entity, ok, err := s.st.ClaimDueEntity(ctx, time.Now().UTC())
		s.opts.Metrics.ObserveClaimLatency(time.Since(claimStart))
		if err != nil {
			logger.Error("claim_due_entity failed", zap.Error(err))
			s.sleepPoll()
			continue
		}
		if !ok {
			s.sleepPoll()
			continue
		}

		select {
		case <-s.stopCh:
			// Release the claim we just took before exiting.
			_ = s.st.ReleaseEntity(context.Background(), entity.ID, nil)
			return
		default:
		}

		s.runTick(logger, entity)
	}
}

func (s *Scheduler) sleepPoll() {
	d := backoff.Jitter(s.opts.PollInterval, s.opts.PollJitter)
	select {
	case <-s.stopCh:
	case <-time.After(d):
	}
}

// evaluatorSelector is a seam for tests to stub evaluation without real profile
// data; production code always uses evaluator.Select.
type evaluatorSelector func(record.DriftType) (evaluator.Evaluator, error)

var selectEvaluator evaluatorSelector = evaluator.Select
