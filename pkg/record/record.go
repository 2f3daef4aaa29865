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

// Package record defines the typed wire/persisted shapes shared by every
// component of the drift engine: the four ObservationRecord variants, the
// polymorphic DriftProfile, DriftEntity, and DriftAlert.
//
// Nothing in this package talks to a store or a network; it is the common
// vocabulary the profiler, evaluator, ingestion queue, store, and scheduler
// packages all import.
package record

import "time"

// DriftType selects which statistical method an entity is monitored with.
// It also selects the shape of the profile and observation records bound to
// the entity — the four are mutually exclusive, not layered.
type DriftType string

const (
	SPC    DriftType = "SPC"
	PSI    DriftType = "PSI"
	Custom DriftType = "CUSTOM"
	LLM    DriftType = "LLM"
)

// Valid reports whether d is one of the four known drift types.
func (d DriftType) Valid() bool {
	switch d {
	case SPC, PSI, Custom, LLM:
		return true
	default:
		return false
	}
}

// EntityStatus is the scheduling status of a DriftEntity. It is mutated only
// by the scheduler's claim/complete protocol (internal/scheduler).
type EntityStatus string

const (
	StatusPending    EntityStatus = "pending"
	StatusProcessing EntityStatus = "processing"
)

// DriftEntity is the identity of a monitored artifact: a (space, name,
// version) tuple paired with a drift_type, a cron schedule, and the
// scheduler's run bookkeeping.
//
// ID is assigned on first registration and is the canonical identity used by
// every other table; (space, name, version) is a registration-time lookup
// key only.
type DriftEntity struct {
	ID          int64
	Space       string
	Name        string
	Version     string
	DriftType   DriftType
	Active      bool
	Schedule    string // 6-field cron, seconds precision, no timezone literals
	NextRun     time.Time
	PreviousRun time.Time
	Status      EntityStatus
}

// Key returns the registration-time lookup key for this entity. It is unique
// per drift_type but is never used as a foreign key target — entity_id is.
func (e DriftEntity) Key() (space, name, version string, driftType DriftType) {
	return e.Space, e.Name, e.Version, e.DriftType
}
