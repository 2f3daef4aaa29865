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

package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scouter/pkg/record"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]record.ObservationRecord
	failN   int32
}

func (f *fakeSink) WriteBatch(ctx context.Context, driftType record.DriftType, records []record.ObservationRecord) error {
	if atomic.AddInt32(&f.failN, -1) >= 0 {
		return errAlways
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

type errString string

func (e errString) Error() string { return string(e) }

const errAlways = errString("always fails")

type countingMetrics struct {
	dropped int64
	failed  int64
}

func (m *countingMetrics) IncDropped(_ record.DriftType, n int)      { atomic.AddInt64(&m.dropped, int64(n)) }
func (m *countingMetrics) IncFlushFailures(record.DriftType)         { atomic.AddInt64(&m.failed, 1) }
func (m *countingMetrics) ObserveQueueDepth(record.DriftType, int)   {}

func TestQueueFlushesOnSizeThreshold(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(record.SPC, sink, Options{Capacity: 10, FlushInterval: time.Hour})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 6; i++ {
		q.Enqueue(context.Background(), record.SPCRecord{EntityID: 1, Feature: "f"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for sink.total() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.total(); got != 6 {
		t.Fatalf("sink received %d records, want 6", got)
	}
}

func TestQueueBackpressureDrop(t *testing.T) {
	// Enqueue 2000 records fast with capacity 1000: at most 1000 dropped,
	// no crash, metric increments accordingly.
	sink := &fakeSink{}
	metrics := &countingMetrics{}
	q := NewQueue(record.Custom, sink, Options{
		Capacity:            1000,
		FlushInterval:       time.Hour,
		BackpressureTimeout: time.Millisecond,
		Metrics:             metrics,
	})
	// Do not Start the background loop: this isolates producer backpressure
	// behavior from the flush path.

	var wg sync.WaitGroup
	for i := 0; i < 2000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(context.Background(), record.CustomRecord{EntityID: 1, Metric: "m"})
		}()
	}
	wg.Wait()

	if q.Len() > 1000 {
		t.Fatalf("queue depth %d exceeds capacity 1000", q.Len())
	}
	if metrics.dropped == 0 {
		t.Errorf("expected some drops under overflow, got 0")
	}
	if q.Len()+int(metrics.dropped) < 2000 {
		t.Errorf("accepted (%d) + dropped (%d) < 2000 enqueue attempts", q.Len(), metrics.dropped)
	}
}

func TestQueueRetriesThenDropsOnPersistentFailure(t *testing.T) {
	sink := &fakeSink{failN: 100} // always fails
	metrics := &countingMetrics{}
	q := NewQueue(record.PSI, sink, Options{
		Capacity:         10,
		FlushInterval:    10 * time.Millisecond,
		MaxFlushAttempts: 2,
		Metrics:          metrics,
	})
	q.Start(context.Background())
	defer q.Stop()

	q.Enqueue(context.Background(), record.PSIRecord{EntityID: 1, Feature: "f", BinID: 0, BinCount: 1})

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&metrics.failed) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt64(&metrics.failed) == 0 {
		t.Fatal("expected flush_failures_total to increment on persistent failure")
	}
	if sink.total() != 0 {
		t.Errorf("sink should never have accepted a batch, got %d records", sink.total())
	}
}

func TestQueueFinalFlushOnStop(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(record.SPC, sink, Options{Capacity: 100, FlushInterval: time.Hour})
	q.Start(context.Background())

	q.Enqueue(context.Background(), record.SPCRecord{EntityID: 1, Feature: "f"})
	q.Stop()

	if got := sink.total(); got != 1 {
		t.Fatalf("final flush delivered %d records, want 1", got)
	}
}
