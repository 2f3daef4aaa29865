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

// Package alert implements the alert emitter: it turns a batch of
// persisted DriftAlert rows into a transport-agnostic dispatch payload and
// ships it at-least-once through one of three pluggable sinks, selected by
// Build. Dispatch never fails the scheduler's tick; all of it is
// best-effort, log-and-count on error.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"scouter/pkg/record"
)

// Payload is the wire-agnostic shape every Dispatcher sends: one message
// per fired alert, carrying enough identity to dedup downstream.
type Payload struct {
	EntityID  int64           `json:"entity_id"`
	Space     string          `json:"space"`
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	DriftType record.DriftType `json:"drift_type"`
	CreatedAt time.Time       `json:"created_at"`
	Alert     json.RawMessage `json:"alert"`
}

// NewPayload builds the dispatch payload for one persisted alert.
func NewPayload(entity record.DriftEntity, a record.DriftAlert) Payload {
	return Payload{
		EntityID:  a.EntityID,
		Space:     entity.Space,
		Name:      entity.Name,
		Version:   entity.Version,
		DriftType: a.DriftType,
		CreatedAt: a.CreatedAt,
		Alert:     a.Alert,
	}
}

// Key is the natural key a receiving dedup layer should key on.
func (p Payload) Key() string {
	return fmt.Sprintf("%d:%d", p.EntityID, p.CreatedAt.UnixNano())
}

// Dispatcher delivers one alert payload. Implementations must not block
// indefinitely; ctx carries whatever deadline the caller wants enforced.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload Payload) error
}

// Metrics is the narrow telemetry surface a Sender reports failures
// through (alert_dispatch_failures_total).
type Metrics interface {
	IncDispatchFailures(driftType record.DriftType)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) IncDispatchFailures(record.DriftType) {}
