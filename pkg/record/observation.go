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

import "time"

// ObservationRecord is satisfied by the four record shapes keyed by
// drift_type. Each concrete type carries only its own columns; there is no
// shared struct because the four shapes genuinely differ (PSI carries a
// bin_id, LLM carries a record_uid, the rest don't).
type ObservationRecord interface {
	// Kind reports which drift_type this record belongs to.
	Kind() DriftType
	// Entity reports the owning entity and the record's timestamp, the
	// two columns every shape shares and the natural-key prefix every
	// write path conflicts on.
	Entity() (entityID int64, createdAt time.Time)
}

// SPCRecord is one raw feature observation for an SPC-monitored entity.
type SPCRecord struct {
	EntityID  int64     `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
	Feature   string    `json:"feature"`
	Value     float64   `json:"value"`
}

func (r SPCRecord) Kind() DriftType { return SPC }
func (r SPCRecord) Entity() (int64, time.Time) {
	return r.EntityID, r.CreatedAt
}

// PSIRecord is one pre-binned count observation for a PSI-monitored entity.
// Records arrive already binned (bin_id is part of the wire format), not
// binned at evaluation time — the store only ever sees bin_id/bin_count
// pairs.
type PSIRecord struct {
	EntityID  int64     `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
	Feature   string    `json:"feature"`
	BinID     int       `json:"bin_id"`
	BinCount  int64     `json:"bin_count"`
}

func (r PSIRecord) Kind() DriftType { return PSI }
func (r PSIRecord) Entity() (int64, time.Time) {
	return r.EntityID, r.CreatedAt
}

// CustomRecord is one raw metric observation for a Custom-monitored entity.
type CustomRecord struct {
	EntityID  int64     `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

func (r CustomRecord) Kind() DriftType { return Custom }
func (r CustomRecord) Entity() (int64, time.Time) {
	return r.EntityID, r.CreatedAt
}

// LLMRecord is one scored-event metric observation, emitted asynchronously
// by an upstream LLM evaluator after it scores a raw event. RecordUID is
// nullable since not every upstream scorer assigns one.
type LLMRecord struct {
	EntityID  int64     `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
	RecordUID *string   `json:"record_uid,omitempty"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

func (r LLMRecord) Kind() DriftType { return LLM }
func (r LLMRecord) Entity() (int64, time.Time) {
	return r.EntityID, r.CreatedAt
}
