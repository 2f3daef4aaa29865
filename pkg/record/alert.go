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

package record

import (
	"encoding/json"
	"time"
)

// FiredAlert is the in-memory output of the drift evaluator, before it is
// persisted as a DriftAlert or handed to the alert emitter.
type FiredAlert struct {
	EntityID        int64          `json:"entity_id"`
	DriftType       DriftType      `json:"drift_type"`
	FeatureOrMetric string         `json:"feature_or_metric"`
	Kind            string         `json:"kind"` // e.g. "spc_rule_0", "psi_threshold", "custom_above"
	Diagnostic      map[string]any `json:"diagnostic"`
	CreatedAt       time.Time      `json:"created_at"`
}

// DiagnosticJSON marshals the diagnostic payload for persistence. It never fails
// on a well-formed FiredAlert (the diagnostic map holds only JSON-safe
// scalars); a marshal error indicates a caller bug, not a runtime
// condition.
func (a FiredAlert) DiagnosticJSON() (json.RawMessage, error) {
	if a.Diagnostic == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(a.Diagnostic)
}

// DriftAlert is the persisted row produced from a FiredAlert. Active is the
// only mutable field post-insert (operator acknowledgement).
type DriftAlert struct {
	ID        int64           `json:"id"`
	EntityID  int64           `json:"entity_id"`
	CreatedAt time.Time       `json:"created_at"`
	Alert     json.RawMessage `json:"alert"`
	Active    bool            `json:"active"`
	DriftType DriftType       `json:"drift_type"`
}

// NewDriftAlert converts a FiredAlert into the persisted shape. The caller
// supplies now so that all alerts from one evaluation tick share an
// identical created_at, matching the natural key (entity_id, created_at)
// the store conflicts on.
func NewDriftAlert(fired FiredAlert, now time.Time) (DriftAlert, error) {
	payload := struct {
		FeatureOrMetric string         `json:"feature_or_metric"`
		Kind            string         `json:"kind"`
		Diagnostic      map[string]any `json:"diagnostic"`
	}{fired.FeatureOrMetric, fired.Kind, fired.Diagnostic}

	raw, err := json.Marshal(payload)
	if err != nil {
		return DriftAlert{}, err
	}
	return DriftAlert{
		EntityID:  fired.EntityID,
		CreatedAt: now,
		Alert:     raw,
		Active:    true,
		DriftType: fired.DriftType,
	}, nil
}
