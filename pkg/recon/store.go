package recon

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/database"
)

// Store persists execution records. This is a main-application-database
// table (execution_records), distinct from the landing package's own
// execution_history bookkeeping table in the landing database.
type Store interface {
	Put(ctx context.Context, rec *ExecutionRecord) error
	Get(ctx context.Context, executionID string) (*ExecutionRecord, error)
	List(ctx context.Context, rulesetID string) ([]*ExecutionRecord, error)
}

// MemoryStore is an in-process Store for tests and small deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*ExecutionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*ExecutionRecord)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Put(ctx context.Context, rec *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ExecutionID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[executionID]
	if !ok {
		return nil, apperrors.NotFoundf("execution record", executionID)
	}
	return rec, nil
}

func (s *MemoryStore) List(ctx context.Context, rulesetID string) ([]*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ExecutionRecord
	for _, rec := range s.data {
		if rulesetID == "" || rec.RulesetID == rulesetID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// PostgresStore persists execution records in an execution_records table,
// one row per run, KPIs stored as a jsonb object. Grounded on the same
// marshal-to-jsonb CRUD shape as rules.PostgresStore.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Put(ctx context.Context, rec *ExecutionRecord) error {
	kpisJSON, err := json.Marshal(rec.KPIs)
	if err != nil {
		return apperrors.Invalidf("marshal execution kpis", err)
	}

	const query = `
		INSERT INTO execution_records (
			execution_id, ruleset_id, status, source_table, target_table, kpis, error_message,
			total_source_count, total_target_count, matched_count, unmatched_source_count, unmatched_target_count,
			started_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status,
			source_table = EXCLUDED.source_table,
			target_table = EXCLUDED.target_table,
			kpis = EXCLUDED.kpis,
			error_message = EXCLUDED.error_message,
			total_source_count = EXCLUDED.total_source_count,
			total_target_count = EXCLUDED.total_target_count,
			matched_count = EXCLUDED.matched_count,
			unmatched_source_count = EXCLUDED.unmatched_source_count,
			unmatched_target_count = EXCLUDED.unmatched_target_count,
			completed_at = EXCLUDED.completed_at`

	_, err = s.db.Exec(ctx, query,
		rec.ExecutionID, rec.RulesetID, rec.Status, rec.SourceTable, rec.TargetTable, kpisJSON, rec.ErrorMessage,
		rec.TotalSourceCount, rec.TotalTargetCount, rec.MatchedCount, rec.UnmatchedSourceCount, rec.UnmatchedTargetCount,
		rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "put execution record "+rec.ExecutionID, true, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	const query = `
		SELECT execution_id, ruleset_id, status, source_table, target_table, kpis, error_message,
			total_source_count, total_target_count, matched_count, unmatched_source_count, unmatched_target_count,
			started_at, completed_at
		FROM execution_records WHERE execution_id = $1`

	rec := &ExecutionRecord{}
	var kpisJSON []byte
	row := s.db.QueryRow(ctx, query, executionID)
	if err := row.Scan(&rec.ExecutionID, &rec.RulesetID, &rec.Status, &rec.SourceTable, &rec.TargetTable, &kpisJSON, &rec.ErrorMessage,
		&rec.TotalSourceCount, &rec.TotalTargetCount, &rec.MatchedCount, &rec.UnmatchedSourceCount, &rec.UnmatchedTargetCount,
		&rec.StartedAt, &rec.CompletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFoundf("execution record", executionID)
		}
		return nil, apperrors.New(apperrors.KindDBQuery, "get execution record "+executionID, true, err)
	}
	if err := json.Unmarshal(kpisJSON, &rec.KPIs); err != nil {
		return nil, apperrors.Invalidf("execution record "+executionID+" has malformed kpis", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, rulesetID string) ([]*ExecutionRecord, error) {
	query := `
		SELECT execution_id, ruleset_id, status, source_table, target_table, kpis, error_message,
			total_source_count, total_target_count, matched_count, unmatched_source_count, unmatched_target_count,
			started_at, completed_at
		FROM execution_records`
	args := []any{}
	if rulesetID != "" {
		query += ` WHERE ruleset_id = $1`
		args = append(args, rulesetID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "list execution records", true, err)
	}
	defer rows.Close()

	var out []*ExecutionRecord
	for rows.Next() {
		rec := &ExecutionRecord{}
		var kpisJSON []byte
		if err := rows.Scan(&rec.ExecutionID, &rec.RulesetID, &rec.Status, &rec.SourceTable, &rec.TargetTable, &kpisJSON, &rec.ErrorMessage,
			&rec.TotalSourceCount, &rec.TotalTargetCount, &rec.MatchedCount, &rec.UnmatchedSourceCount, &rec.UnmatchedTargetCount,
			&rec.StartedAt, &rec.CompletedAt); err != nil {
			return nil, apperrors.New(apperrors.KindDBQuery, "scan execution record", true, err)
		}
		if err := json.Unmarshal(kpisJSON, &rec.KPIs); err != nil {
			return nil, apperrors.Invalidf("execution record "+rec.ExecutionID+" has malformed kpis", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
