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

// Package intake fronts the ingestion queue (internal/ingest) with an HTTP
// endpoint and a Kafka consumer, the two entry points cmd/scouter-ingest
// wires up. Both paths do the same thing: decode one ObservationRecord per
// drift_type's wire shape and hand it to that drift type's queue.
package intake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scouter/internal/ingest"
	"scouter/pkg/record"
)

// Queues is the set of per-drift-type queues the intake enqueues onto.
type Queues map[record.DriftType]*ingest.Queue

// Server is the HTTP front door for observation ingestion.
type Server struct {
	queues Queues
	logger *zap.Logger
}

// NewServer builds a Server dispatching onto queues. A nil logger uses a
// no-op logger.
func NewServer(queues Queues, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{queues: queues, logger: logger}
}

// RegisterRoutes wires the intake's routes onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/observations/", s.handleObservations)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

// ListenAndServe starts the HTTP server on addr with conservative timeout
// defaults (5s read, 10s write, 120s idle).
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("ingest HTTP intake listening", zap.String("addr", addr))
	return httpServer.ListenAndServe()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

// handleObservations accepts POST /observations/{drift_type} with a JSON
// array body of that drift type's record shape. Every record that decodes
// is enqueued; a decode failure for the whole batch is rejected with 400
// rather than partially accepted, since the batch came from one producer
// call and silently dropping part of it would be surprising.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	driftType := record.DriftType(r.URL.Path[len("/observations/"):])
	if !driftType.Valid() {
		http.Error(w, fmt.Sprintf("unknown drift_type %q", driftType), http.StatusBadRequest)
		return
	}
	queue, ok := s.queues[driftType]
	if !ok {
		http.Error(w, fmt.Sprintf("no queue configured for drift_type %q", driftType), http.StatusServiceUnavailable)
		return
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
		return
	}

	recs := make([]record.ObservationRecord, 0, len(raw))
	for _, msg := range raw {
		rec, err := DecodeRecord(driftType, msg)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s record: %v", driftType, err), http.StatusBadRequest)
			return
		}
		recs = append(recs, rec)
	}

	for _, rec := range recs {
		queue.Enqueue(r.Context(), rec)
	}

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "accepted %d records\n", len(recs))
}

// DecodeRecord unmarshals raw into the ObservationRecord shape driftType
// selects. It is shared by the HTTP and Kafka intakes.
func DecodeRecord(driftType record.DriftType, raw json.RawMessage) (record.ObservationRecord, error) {
	switch driftType {
	case record.SPC:
		var rec record.SPCRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	case record.PSI:
		var rec record.PSIRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	case record.Custom:
		var rec record.CustomRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	case record.LLM:
		var rec record.LLMRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unknown drift_type %q", driftType)
	}
}
