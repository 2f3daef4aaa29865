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

//go:build integration

// Package store's integration suite runs against a real Postgres instance
// reachable via DATABASE_URL. Run with:
//
//	DATABASE_URL=postgres://... go test -tags=integration ./internal/store/...
package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scouter/internal/store"
	"scouter/pkg/record"
)

func connectPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresClaimDueEntity(t *testing.T) {
	pool := connectPool(t)
	s := store.NewPostgresStore(pool, 30*time.Second)
	ctx := context.Background()

	entity, err := s.RegisterEntity(ctx, record.DriftEntity{
		Space: "integration", Name: "claim", Version: "v1", DriftType: record.SPC,
		Active: true, Schedule: "0 */5 * * * *", NextRun: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	claimed, ok, err := s.ClaimDueEntity(ctx, time.Now())
	if err != nil {
		t.Fatalf("ClaimDueEntity: %v", err)
	}
	if !ok || claimed.ID != entity.ID {
		t.Fatalf("expected to claim entity %d, got ok=%v claimed=%+v", entity.ID, ok, claimed)
	}

	if _, ok, err := s.ClaimDueEntity(ctx, time.Now()); err != nil || ok {
		t.Fatalf("second claim should see no due entity, got ok=%v err=%v", ok, err)
	}

	if err := s.CompleteEntity(ctx, entity.ID, time.Now(), time.Now().Add(5*time.Minute)); err != nil {
		t.Fatalf("CompleteEntity: %v", err)
	}
}

func TestPostgresWriteBatchIdempotent(t *testing.T) {
	pool := connectPool(t)
	s := store.NewPostgresStore(pool, 30*time.Second)
	ctx := context.Background()

	entity, err := s.RegisterEntity(ctx, record.DriftEntity{
		Space: "integration", Name: "write", Version: "v1", DriftType: record.SPC,
		Active: true, Schedule: "0 */5 * * * *", NextRun: time.Now(),
	})
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	batch := []record.ObservationRecord{
		record.SPCRecord{EntityID: entity.ID, CreatedAt: now, Feature: "f", Value: 1.0},
	}
	if err := s.WriteBatch(ctx, record.SPC, batch); err != nil {
		t.Fatalf("first WriteBatch: %v", err)
	}
	if err := s.WriteBatch(ctx, record.SPC, batch); err != nil {
		t.Fatalf("second WriteBatch: %v", err)
	}

	window, err := s.ReadWindow(ctx, entity.ID, record.SPC, record.Window{
		Start: now.Add(-time.Minute), End: now.Add(time.Minute),
	}, nil)
	if err != nil {
		t.Fatalf("ReadWindow: %v", err)
	}
	if len(window.SPC) != 1 || len(window.SPC[0].Points) != 1 {
		t.Fatalf("expected exactly one stored point, got %+v", window.SPC)
	}
}
