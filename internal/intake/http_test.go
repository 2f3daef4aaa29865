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

package intake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"scouter/internal/ingest"
	"scouter/pkg/record"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]record.ObservationRecord
}

func (s *fakeSink) WriteBatch(_ context.Context, driftType record.DriftType, recs []record.ObservationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, recs)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func newTestServer(t *testing.T, driftType record.DriftType) (*Server, *fakeSink, *ingest.Queue) {
	t.Helper()
	sink := &fakeSink{}
	queue := ingest.NewQueue(driftType, sink, ingest.Options{FlushInterval: 10 * time.Millisecond})
	queue.Start(t.Context())
	t.Cleanup(queue.Stop)
	return NewServer(Queues{driftType: queue}, nil), sink, queue
}

func TestHandleObservationsAcceptsValidBatch(t *testing.T) {
	srv, sink, _ := newTestServer(t, record.Custom)

	body := `[{"entity_id":1,"created_at":"2026-01-01T00:00:00Z","metric":"latency_ms","value":12.5}]`
	req := httptest.NewRequest(http.MethodPost, "/observations/CUSTOM", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleObservations(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("sink received %d records, want 1", sink.count())
	}
}

func TestHandleObservationsRejectsUnknownDriftType(t *testing.T) {
	srv, _, _ := newTestServer(t, record.Custom)

	req := httptest.NewRequest(http.MethodPost, "/observations/NOT_A_TYPE", strings.NewReader(`[]`))
	w := httptest.NewRecorder()
	srv.handleObservations(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleObservationsRejectsMalformedJSON(t *testing.T) {
	srv, _, _ := newTestServer(t, record.Custom)

	req := httptest.NewRequest(http.MethodPost, "/observations/CUSTOM", strings.NewReader(`not json`))
	w := httptest.NewRecorder()
	srv.handleObservations(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleObservationsRejectsWrongMethod(t *testing.T) {
	srv, _, _ := newTestServer(t, record.Custom)

	req := httptest.NewRequest(http.MethodGet, "/observations/CUSTOM", nil)
	w := httptest.NewRecorder()
	srv.handleObservations(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestHealthzReportsOK(t *testing.T) {
	srv, _, _ := newTestServer(t, record.Custom)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
