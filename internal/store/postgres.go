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

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"scouter/pkg/record"
)

// PostgresStore implements Store over a pgxpool connection pool. See
// schema.sql for the reference DDL this code assumes.
type PostgresStore struct {
	pool           *pgxpool.Pool
	callTimeout    time.Duration
	retentionByKind map[record.DriftType]time.Duration
}

// NewPool opens a pgxpool against databaseURL with its MaxConns set to
// maxConns, so the startup pool-size validation in internal/config is
// actually enforced by the pool the binaries run against.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store.NewPool: parse config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store.NewPool: %w", err)
	}
	return pool, nil
}

// NewPostgresStore wraps pool. callTimeout is the per-call deadline applied
// when the caller's context carries none (default 30s).
func NewPostgresStore(pool *pgxpool.Pool, callTimeout time.Duration) *PostgresStore {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &PostgresStore{
		pool:        pool,
		callTimeout: callTimeout,
		retentionByKind: map[record.DriftType]time.Duration{
			record.SPC:    7 * 24 * time.Hour,
			record.PSI:    30 * 24 * time.Hour,
			record.Custom: 30 * 24 * time.Hour,
			record.LLM:    30 * 24 * time.Hour,
		},
	}
}

func (s *PostgresStore) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func classifyPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Op: op, Err: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &Error{Kind: NotFound, Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return &Error{Kind: Serialization, Op: op, Err: err}
		case "23505": // unique_violation
			return &Error{Kind: Conflict, Op: op, Err: err}
		}
	}
	return &Error{Kind: Connection, Op: op, Err: err}
}

// tableFor maps a drift type onto its observation table name.
func tableFor(driftType record.DriftType) (string, error) {
	switch driftType {
	case record.SPC:
		return "spc_drift", nil
	case record.PSI:
		return "psi_drift", nil
	case record.Custom:
		return "custom_drift", nil
	case record.LLM:
		return "llm_drift", nil
	default:
		return "", fmt.Errorf("store: unknown drift type %q", driftType)
	}
}

// WriteBatch multi-row inserts records into the table for driftType, using
// ON CONFLICT DO NOTHING on the natural key (created_at, entity_id,
// feature/metric).
func (s *PostgresStore) WriteBatch(ctx context.Context, driftType record.DriftType, records []record.ObservationRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	var err error
	switch driftType {
	case record.SPC:
		err = s.writeSPC(ctx, records)
	case record.PSI:
		err = s.writePSI(ctx, records)
	case record.Custom:
		err = s.writeCustom(ctx, records)
	case record.LLM:
		err = s.writeLLM(ctx, records)
	default:
		return fmt.Errorf("store: unknown drift type %q", driftType)
	}
	return classifyPgError("write_batch", err)
}

func (s *PostgresStore) writeSPC(ctx context.Context, records []record.ObservationRecord) error {
	entityIDs := make([]int64, 0, len(records))
	createdAts := make([]time.Time, 0, len(records))
	features := make([]string, 0, len(records))
	values := make([]float64, 0, len(records))
	for _, r := range records {
		rec, ok := r.(record.SPCRecord)
		if !ok {
			return fmt.Errorf("store: expected SPCRecord, got %T", r)
		}
		entityIDs = append(entityIDs, rec.EntityID)
		createdAts = append(createdAts, rec.CreatedAt)
		features = append(features, rec.Feature)
		values = append(values, rec.Value)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO spc_drift (entity_id, created_at, feature, value)
		SELECT * FROM unnest($1::bigint[], $2::timestamptz[], $3::text[], $4::double precision[])
		ON CONFLICT DO NOTHING`,
		entityIDs, createdAts, features, values)
	return err
}

func (s *PostgresStore) writePSI(ctx context.Context, records []record.ObservationRecord) error {
	entityIDs := make([]int64, 0, len(records))
	createdAts := make([]time.Time, 0, len(records))
	features := make([]string, 0, len(records))
	binIDs := make([]int32, 0, len(records))
	binCounts := make([]int64, 0, len(records))
	for _, r := range records {
		rec, ok := r.(record.PSIRecord)
		if !ok {
			return fmt.Errorf("store: expected PSIRecord, got %T", r)
		}
		entityIDs = append(entityIDs, rec.EntityID)
		createdAts = append(createdAts, rec.CreatedAt)
		features = append(features, rec.Feature)
		binIDs = append(binIDs, int32(rec.BinID))
		binCounts = append(binCounts, rec.BinCount)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO psi_drift (entity_id, created_at, feature, bin_id, bin_count)
		SELECT * FROM unnest($1::bigint[], $2::timestamptz[], $3::text[], $4::int[], $5::bigint[])
		ON CONFLICT DO NOTHING`,
		entityIDs, createdAts, features, binIDs, binCounts)
	return err
}

func (s *PostgresStore) writeCustom(ctx context.Context, records []record.ObservationRecord) error {
	entityIDs := make([]int64, 0, len(records))
	createdAts := make([]time.Time, 0, len(records))
	metrics := make([]string, 0, len(records))
	values := make([]float64, 0, len(records))
	for _, r := range records {
		rec, ok := r.(record.CustomRecord)
		if !ok {
			return fmt.Errorf("store: expected CustomRecord, got %T", r)
		}
		entityIDs = append(entityIDs, rec.EntityID)
		createdAts = append(createdAts, rec.CreatedAt)
		metrics = append(metrics, rec.Metric)
		values = append(values, rec.Value)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO custom_drift (entity_id, created_at, metric, value)
		SELECT * FROM unnest($1::bigint[], $2::timestamptz[], $3::text[], $4::double precision[])
		ON CONFLICT DO NOTHING`,
		entityIDs, createdAts, metrics, values)
	return err
}

func (s *PostgresStore) writeLLM(ctx context.Context, records []record.ObservationRecord) error {
	entityIDs := make([]int64, 0, len(records))
	createdAts := make([]time.Time, 0, len(records))
	metrics := make([]string, 0, len(records))
	values := make([]float64, 0, len(records))
	recordUIDs := make([]*string, 0, len(records))
	for _, r := range records {
		rec, ok := r.(record.LLMRecord)
		if !ok {
			return fmt.Errorf("store: expected LLMRecord, got %T", r)
		}
		entityIDs = append(entityIDs, rec.EntityID)
		createdAts = append(createdAts, rec.CreatedAt)
		metrics = append(metrics, rec.Metric)
		values = append(values, rec.Value)
		recordUIDs = append(recordUIDs, rec.RecordUID)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO llm_drift (entity_id, created_at, metric, value, record_uid)
		SELECT * FROM unnest($1::bigint[], $2::timestamptz[], $3::text[], $4::double precision[], $5::text[])
		ON CONFLICT DO NOTHING`,
		entityIDs, createdAts, metrics, values, recordUIDs)
	return err
}

// ReadWindow shapes its result per drift-type. SPC rows come back ordered
// by created_at DESC from the query itself; PSI rows are summed per
// (feature, bin_id) and come back ordered by feature. Callers must not
// assume any other ordering.
func (s *PostgresStore) ReadWindow(ctx context.Context, entityID int64, driftType record.DriftType, window record.Window, features []string) (record.WindowSlice, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	slice := record.WindowSlice{Window: window}
	var err error
	switch driftType {
	case record.SPC:
		slice.SPC, err = s.readSPCWindow(ctx, entityID, window, features)
	case record.PSI:
		slice.PSI, err = s.readPSIWindow(ctx, entityID, window, features)
	case record.Custom:
		slice.Custom, err = s.readMetricWindow(ctx, "custom_drift", entityID, window, features)
	case record.LLM:
		slice.Custom, err = s.readMetricWindow(ctx, "llm_drift", entityID, window, features)
	default:
		return slice, fmt.Errorf("store: unknown drift type %q", driftType)
	}
	if err != nil {
		return slice, classifyPgError("read_window", err)
	}
	return slice, nil
}

func (s *PostgresStore) readSPCWindow(ctx context.Context, entityID int64, window record.Window, features []string) ([]record.SPCSeries, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT feature, created_at, value FROM spc_drift
		WHERE entity_id = $1 AND created_at >= $2 AND created_at < $3
		  AND NOT archived AND ($4::text[] IS NULL OR feature = ANY($4))
		ORDER BY created_at DESC`,
		entityID, window.Start, window.End, nullableFeatures(features))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byFeature := map[string][]record.SPCPoint{}
	order := []string{}
	for rows.Next() {
		var feature string
		var point record.SPCPoint
		if err := rows.Scan(&feature, &point.CreatedAt, &point.Value); err != nil {
			return nil, err
		}
		if _, seen := byFeature[feature]; !seen {
			order = append(order, feature)
		}
		byFeature[feature] = append(byFeature[feature], point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]record.SPCSeries, 0, len(order))
	for _, f := range order {
		out = append(out, record.SPCSeries{Feature: f, Points: byFeature[f]})
	}
	return out, nil
}

// minSampleSizeMultiplier implements the Yurdakul (2018) minimum-sample-size
// rule: total count > 10 * number_of_bins observed.
const minSampleSizeMultiplier = 10

func (s *PostgresStore) readPSIWindow(ctx context.Context, entityID int64, window record.Window, features []string) ([]record.PSICounts, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT feature, bin_id, SUM(bin_count) FROM psi_drift
		WHERE entity_id = $1 AND created_at >= $2 AND created_at < $3
		  AND NOT archived AND ($4::text[] IS NULL OR feature = ANY($4))
		GROUP BY feature, bin_id
		ORDER BY feature`,
		entityID, window.Start, window.End, nullableFeatures(features))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byFeature := map[string]map[int]int64{}
	order := []string{}
	for rows.Next() {
		var feature string
		var binID int32
		var count int64
		if err := rows.Scan(&feature, &binID, &count); err != nil {
			return nil, err
		}
		if _, seen := byFeature[feature]; !seen {
			byFeature[feature] = map[int]int64{}
			order = append(order, feature)
		}
		byFeature[feature][int(binID)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]record.PSICounts, 0, len(order))
	for _, f := range order {
		counts := byFeature[f]
		var total int64
		for _, c := range counts {
			total += c
		}
		if total <= int64(minSampleSizeMultiplier*len(counts)) {
			continue // fails the minimum-sample-size rule; omit silently
		}
		out = append(out, record.PSICounts{Feature: f, Counts: counts, Total: total})
	}
	return out, nil
}

func (s *PostgresStore) readMetricWindow(ctx context.Context, table string, entityID int64, window record.Window, features []string) ([]record.MetricAverage, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT metric, AVG(value), COUNT(*) FROM %s
		WHERE entity_id = $1 AND created_at >= $2 AND created_at < $3
		  AND NOT archived AND ($4::text[] IS NULL OR metric = ANY($4))
		GROUP BY metric`, table),
		entityID, window.Start, window.End, nullableFeatures(features))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.MetricAverage
	for rows.Next() {
		var m record.MetricAverage
		if err := rows.Scan(&m.Metric, &m.Average, &m.Count); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableFeatures(features []string) []string {
	if len(features) == 0 {
		return nil
	}
	return features
}

// ClaimDueEntity implements the SKIP LOCKED claim protocol: the
// transaction selects and marks exactly one due entity, committing before
// returning so the row lock is held only as long as necessary.
func (s *PostgresStore) ClaimDueEntity(ctx context.Context, now time.Time) (record.DriftEntity, bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return record.DriftEntity{}, false, classifyPgError("claim_due_entity", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var e record.DriftEntity
	var previousRun *time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, space, name, version, drift_type, active, schedule, next_run, previous_run, status
		FROM drift_entities
		WHERE active AND status = 'pending' AND next_run < $1
		ORDER BY next_run ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`, now).Scan(
		&e.ID, &e.Space, &e.Name, &e.Version, &e.DriftType, &e.Active, &e.Schedule, &e.NextRun, &previousRun, &e.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.DriftEntity{}, false, nil
	}
	if err != nil {
		return record.DriftEntity{}, false, classifyPgError("claim_due_entity", err)
	}
	if previousRun != nil {
		e.PreviousRun = *previousRun
	}

	if _, err := tx.Exec(ctx, `UPDATE drift_entities SET status = 'processing' WHERE id = $1`, e.ID); err != nil {
		return record.DriftEntity{}, false, classifyPgError("claim_due_entity", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return record.DriftEntity{}, false, classifyPgError("claim_due_entity", err)
	}
	e.Status = record.StatusProcessing
	return e, true, nil
}

// CompleteEntity is the only writer of next_run on the success path.
func (s *PostgresStore) CompleteEntity(ctx context.Context, entityID int64, now, nextRun time.Time) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
		UPDATE drift_entities SET status = 'pending', previous_run = $2, next_run = $3
		WHERE id = $1`, entityID, now, nextRun)
	return classifyPgError("complete_entity", err)
}

// ReleaseEntity reverts a claim without completing the tick: on failure
// nextRun carries the backoff-computed retry time; on shutdown it is nil
// and next_run is left unchanged.
func (s *PostgresStore) ReleaseEntity(ctx context.Context, entityID int64, nextRun *time.Time) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	var err error
	if nextRun != nil {
		_, err = s.pool.Exec(ctx, `UPDATE drift_entities SET status = 'pending', next_run = $2 WHERE id = $1`, entityID, *nextRun)
	} else {
		_, err = s.pool.Exec(ctx, `UPDATE drift_entities SET status = 'pending' WHERE id = $1`, entityID)
	}
	return classifyPgError("release_entity", err)
}

// InsertAlerts multi-row inserts with ON CONFLICT DO NOTHING on (entity_id,
// created_at), the idempotency key that makes re-evaluation after a crash
// safe.
func (s *PostgresStore) InsertAlerts(ctx context.Context, entityID int64, alerts []record.DriftAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	createdAts := make([]time.Time, 0, len(alerts))
	payloads := make([][]byte, 0, len(alerts))
	driftTypes := make([]string, 0, len(alerts))
	for _, a := range alerts {
		createdAts = append(createdAts, a.CreatedAt)
		payloads = append(payloads, []byte(a.Alert))
		driftTypes = append(driftTypes, string(a.DriftType))
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO drift_alert (entity_id, created_at, alert_json, drift_type)
		SELECT $1, * FROM unnest($2::timestamptz[], $3::jsonb[], $4::text[])
		ON CONFLICT (entity_id, created_at) DO NOTHING`,
		entityID, createdAts, payloads, driftTypes)
	return classifyPgError("insert_alerts", err)
}

// ArchiveOlderThan soft-deletes rows older than horizon by drift type.
func (s *PostgresStore) ArchiveOlderThan(ctx context.Context, driftType record.DriftType, horizon time.Time) error {
	table, err := tableFor(driftType)
	if err != nil {
		return err
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET archived = true WHERE created_at < $1 AND NOT archived`, table), horizon)
	return classifyPgError("archive_older_than", err)
}

// DefaultRetention returns the default retention horizon for driftType:
// 7 days for SPC, 30 for PSI/Custom/LLM.
func (s *PostgresStore) DefaultRetention(driftType record.DriftType) time.Duration {
	return s.retentionByKind[driftType]
}

func (s *PostgresStore) GetProfile(ctx context.Context, entityID int64) (record.DriftProfile, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT profile_json FROM drift_profile WHERE entity_id = $1`, entityID).Scan(&raw)
	if err != nil {
		return record.DriftProfile{}, classifyPgError("get_profile", err)
	}
	var profile record.DriftProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return record.DriftProfile{}, classifyPgError("get_profile", err)
	}
	return profile, nil
}

func (s *PostgresStore) PutProfile(ctx context.Context, profile record.DriftProfile) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO drift_profile (entity_id, profile_json, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (entity_id) DO UPDATE SET profile_json = EXCLUDED.profile_json, updated_at = now()`,
		profile.EntityID, raw)
	return classifyPgError("put_profile", err)
}

func (s *PostgresStore) RegisterEntity(ctx context.Context, entity record.DriftEntity) (record.DriftEntity, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if entity.Status == "" {
		entity.Status = record.StatusPending
	}
	var previousRun *time.Time
	if !entity.PreviousRun.IsZero() {
		previousRun = &entity.PreviousRun
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO drift_entities (space, name, version, drift_type, active, schedule, next_run, previous_run, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (space, name, version, drift_type) DO UPDATE SET schedule = EXCLUDED.schedule
		RETURNING id`,
		entity.Space, entity.Name, entity.Version, entity.DriftType, entity.Active, entity.Schedule, entity.NextRun, previousRun, entity.Status,
	).Scan(&entity.ID)
	if err != nil {
		return record.DriftEntity{}, classifyPgError("register_entity", err)
	}
	return entity, nil
}
