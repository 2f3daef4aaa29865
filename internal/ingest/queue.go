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

// Package ingest implements the in-process bounded queue that batches
// observation records from producers and flushes them to the store on a
// size or wall-clock threshold.
//
// One Queue exists per drift-type per process; the background flush loop
// is a ticker-driven periodic check plus a size-threshold fast path, with
// a drain-on-stop final flush.
package ingest

import (
	"context"
	"sync"
	"time"

	"scouter/internal/backoff"
	"scouter/pkg/record"
)

// Sink is the write side of the store as seen by the ingestion queue.
type Sink interface {
	WriteBatch(ctx context.Context, driftType record.DriftType, records []record.ObservationRecord) error
}

// Metrics is the narrow telemetry surface the queue reports through. It is
// an interface (not a direct dependency on internal/telemetry) so the queue
// can be unit-tested without a Prometheus registry.
type Metrics interface {
	IncDropped(driftType record.DriftType, n int)
	IncFlushFailures(driftType record.DriftType)
	ObserveQueueDepth(driftType record.DriftType, depth int)
}

// NoopMetrics discards all observations; used when telemetry is not wired.
type NoopMetrics struct{}

func (NoopMetrics) IncDropped(record.DriftType, int)           {}
func (NoopMetrics) IncFlushFailures(record.DriftType)          {}
func (NoopMetrics) ObserveQueueDepth(record.DriftType, int)    {}

// Options configures a Queue. Zero values fall back to documented defaults.
type Options struct {
	Capacity            int           // Q, default 1000
	FlushInterval       time.Duration // F_interval, default 5s
	BackpressureTimeout time.Duration // T_bp, default 50ms
	MaxFlushAttempts    int           // default 5
	Backoff             backoff.Policy
	Metrics             Metrics
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = 1000
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 5 * time.Second
	}
	if o.BackpressureTimeout <= 0 {
		o.BackpressureTimeout = 50 * time.Millisecond
	}
	if o.MaxFlushAttempts <= 0 {
		o.MaxFlushAttempts = 5
	}
	if o.Backoff == (backoff.Policy{}) {
		o.Backoff = backoff.Ingest()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

// Queue is a bounded, single-drift-type batching queue. Producer enqueues
// are concurrent; the flush itself is single-threaded, run from one
// background goroutine per queue.
type Queue struct {
	driftType record.DriftType
	sink      Sink
	opts      Options

	mu  sync.Mutex
	buf []record.ObservationRecord

	flushSignal chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewQueue constructs a Queue for one drift type. Call Start to begin its
// background flush loop.
func NewQueue(driftType record.DriftType, sink Sink, opts Options) *Queue {
	opts = opts.withDefaults()
	return &Queue{
		driftType:   driftType,
		sink:        sink,
		opts:        opts,
		buf:         make([]record.ObservationRecord, 0, opts.Capacity),
		flushSignal: make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Enqueue adds rec to the queue. If the queue is at capacity it blocks the
// caller for up to BackpressureTimeout waiting for room; if that expires it
// drops rec and increments dropped_records_total.
func (q *Queue) Enqueue(ctx context.Context, rec record.ObservationRecord) {
	deadline := time.Now().Add(q.opts.BackpressureTimeout)
	for {
		q.mu.Lock()
		if len(q.buf) < q.opts.Capacity {
			q.buf = append(q.buf, rec)
			atHalf := len(q.buf) >= q.opts.Capacity/2
			depth := len(q.buf)
			q.mu.Unlock()
			q.opts.Metrics.ObserveQueueDepth(q.driftType, depth)
			if atHalf {
				q.signalFlush()
			}
			return
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			q.opts.Metrics.IncDropped(q.driftType, 1)
			return
		}
		wait := remaining
		if wait > 5*time.Millisecond {
			wait = 5 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			q.opts.Metrics.IncDropped(q.driftType, 1)
			return
		case <-time.After(wait):
		}
	}
}

func (q *Queue) signalFlush() {
	select {
	case q.flushSignal <- struct{}{}:
	default:
	}
}

// Start launches the background flush loop. It returns immediately; call
// Stop to drain and terminate it.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.doneCh)
	ticker := time.NewTicker(q.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.runFinalFlush(context.Background())
			return
		case <-q.stopCh:
			q.runFinalFlush(context.Background())
			return
		case <-ticker.C:
			q.runFlushCycle(ctx)
		case <-q.flushSignal:
			q.runFlushCycle(ctx)
		}
	}
}

// runFlushCycle drains the buffer and hands it to the sink with retry. It
// is a no-op when the buffer is empty.
func (q *Queue) runFlushCycle(ctx context.Context) {
	batch := q.drain()
	if len(batch) == 0 {
		return
	}
	q.deliver(ctx, batch)
}

// runFinalFlush is the drain-on-stop path: best-effort, single attempt,
// since the process is already shutting down.
func (q *Queue) runFinalFlush(ctx context.Context) {
	batch := q.drain()
	if len(batch) == 0 {
		return
	}
	if err := q.sink.WriteBatch(ctx, q.driftType, batch); err != nil {
		q.opts.Metrics.IncFlushFailures(q.driftType)
	}
}

func (q *Queue) drain() []record.ObservationRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	batch := q.buf
	q.buf = make([]record.ObservationRecord, 0, q.opts.Capacity)
	return batch
}

// deliver attempts WriteBatch with capped exponential backoff between
// attempts, up to MaxFlushAttempts. On final failure it increments
// flush_failures_total and drops the batch.
func (q *Queue) deliver(ctx context.Context, batch []record.ObservationRecord) {
	var err error
	for attempt := 0; attempt < q.opts.MaxFlushAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				q.opts.Metrics.IncFlushFailures(q.driftType)
				return
			case <-time.After(q.opts.Backoff.Delay(attempt - 1)):
			}
		}
		err = q.sink.WriteBatch(ctx, q.driftType, batch)
		if err == nil {
			return
		}
	}
	q.opts.Metrics.IncFlushFailures(q.driftType)
}

// Stop signals the background loop to perform a final flush and exit, then
// waits for it to finish.
func (q *Queue) Stop() {
	close(q.stopCh)
	<-q.doneCh
}

// Len reports the current in-memory buffer depth. Intended for tests and
// diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}
