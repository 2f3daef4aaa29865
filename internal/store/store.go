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

// Package store implements the sink/store abstraction: batched writes,
// windowed reads, and the claim/complete protocol the scheduler uses for
// at-most-once task distribution.
package store

import (
	"context"
	"fmt"
	"time"

	"scouter/pkg/record"
)

// ErrorKind is the closed set of store failure modes.
type ErrorKind string

const (
	Timeout      ErrorKind = "timeout"
	Conflict     ErrorKind = "conflict"
	Connection   ErrorKind = "connection"
	NotFound     ErrorKind = "not_found"
	Serialization ErrorKind = "serialization"
)

// Error is the kind-tagged store error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the scheduler (or the ingestion queue) should
// retry the call that produced this error: Timeout and Connection errors
// are retryable, the other kinds are not, whatever the call was. Reads are
// not retried by the store layer itself.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case Timeout, Connection:
		return true
	default:
		return false
	}
}

// Store is the abstract persistence interface. Implementations must make
// claim_due_entity atomic under concurrent callers.
type Store interface {
	WriteBatch(ctx context.Context, driftType record.DriftType, records []record.ObservationRecord) error
	ReadWindow(ctx context.Context, entityID int64, driftType record.DriftType, window record.Window, features []string) (record.WindowSlice, error)

	// ClaimDueEntity atomically selects and marks 'processing' exactly one
	// entity among those with active AND next_run < now AND status =
	// 'pending', ordered by next_run ASC. It returns (zero, false, nil)
	// when no entity is due.
	ClaimDueEntity(ctx context.Context, now time.Time) (record.DriftEntity, bool, error)
	// CompleteEntity sets status='pending', previous_run=now, next_run as
	// given. Called on tick success.
	CompleteEntity(ctx context.Context, entityID int64, now, nextRun time.Time) error
	// ReleaseEntity reverts a claimed entity to 'pending', used both on tick
	// failure (next_run set to the caller-computed backoff time) and on
	// shutdown (nextRun nil, next_run unchanged).
	ReleaseEntity(ctx context.Context, entityID int64, nextRun *time.Time) error

	InsertAlerts(ctx context.Context, entityID int64, alerts []record.DriftAlert) error
	ArchiveOlderThan(ctx context.Context, driftType record.DriftType, horizon time.Time) error

	// Profile registry, needed by the scheduler to load the entity's
	// baseline before evaluating.
	GetProfile(ctx context.Context, entityID int64) (record.DriftProfile, error)
	PutProfile(ctx context.Context, profile record.DriftProfile) error
	RegisterEntity(ctx context.Context, entity record.DriftEntity) (record.DriftEntity, error)
}
