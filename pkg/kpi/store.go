package kpi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/database"
)

// Store persists KPI definitions and their execution history. Cache-flag
// updates are compare-and-set against the row's current state so a
// concurrent set_cache_flags/clear_cache pair can't produce a lost update.
type Store interface {
	PutKPI(ctx context.Context, k *KPI) error
	GetKPI(ctx context.Context, id string) (*KPI, error)
	ListKPIs(ctx context.Context, groupName string) ([]*KPI, error)
	DeleteKPI(ctx context.Context, id string) error

	// SetCacheFlags applies mutate under the row's current state,
	// persists the result, and returns it. mutate returns an error to
	// abort the update (e.g. the isSQLCached-without-prior-success
	// invariant), in which case nothing is persisted.
	SetCacheFlags(ctx context.Context, id string, mutate func(k *KPI) error) (*KPI, error)

	PutExecution(ctx context.Context, e *Execution) error
	GetExecution(ctx context.Context, executionID string) (*Execution, error)
	ListExecutions(ctx context.Context, kpiID string, filters ExecutionFilters) ([]*Execution, error)
}

// MemoryStore is an in-process Store for tests and small deployments.
type MemoryStore struct {
	mu         sync.Mutex
	kpis       map[string]*KPI
	executions map[string]*Execution
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kpis: make(map[string]*KPI), executions: make(map[string]*Execution)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) PutKPI(ctx context.Context, k *KPI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *k
	s.kpis[k.ID] = &cp
	return nil
}

func (s *MemoryStore) GetKPI(ctx context.Context, id string) (*KPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kpis[id]
	if !ok || k.Deleted {
		return nil, apperrors.NotFoundf("kpi", id)
	}
	cp := *k
	return &cp, nil
}

func (s *MemoryStore) ListKPIs(ctx context.Context, groupName string) ([]*KPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*KPI
	for _, k := range s.kpis {
		if k.Deleted {
			continue
		}
		if groupName != "" && k.GroupName != groupName {
			continue
		}
		cp := *k
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteKPI(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kpis[id]
	if !ok {
		return apperrors.NotFoundf("kpi", id)
	}
	k.Deleted = true
	return nil
}

func (s *MemoryStore) SetCacheFlags(ctx context.Context, id string, mutate func(k *KPI) error) (*KPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.kpis[id]
	if !ok || k.Deleted {
		return nil, apperrors.NotFoundf("kpi", id)
	}
	cp := *k
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	s.kpis[id] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) PutExecution(ctx context.Context, e *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.executions[e.ExecutionID] = &cp
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, executionID string) (*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[executionID]
	if !ok {
		return nil, apperrors.NotFoundf("kpi execution", executionID)
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, kpiID string, filters ExecutionFilters) ([]*Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Execution
	for _, e := range s.executions {
		if e.KPIID != kpiID {
			continue
		}
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExecutionTimestamp.Equal(out[j].ExecutionTimestamp) {
			return out[i].ExecutionTimestamp.After(out[j].ExecutionTimestamp)
		}
		return out[i].ExecutionID > out[j].ExecutionID
	})
	return applyPage(out, filters), nil
}

func applyPage(out []*Execution, filters ExecutionFilters) []*Execution {
	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out
}

// PostgresStore persists KPI definitions and executions in two tables,
// grounded on the same marshal-to-jsonb CRUD shape as recon.PostgresStore
// and rules.PostgresStore. Cache-flag CAS uses a single UPDATE ... WHERE
// guarding on the updated_at value read before the change (see
// SetCacheFlags).
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) PutKPI(ctx context.Context, k *KPI) error {
	const query = `
		INSERT INTO kpis (
			id, name, group_name, definition, kg_name, metric_type, ruleset_id,
			inactive_predicate_sql, is_accept, is_sql_cached, cached_sql,
			has_succeeded_once, deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, group_name = EXCLUDED.group_name,
			definition = EXCLUDED.definition, kg_name = EXCLUDED.kg_name,
			metric_type = EXCLUDED.metric_type, ruleset_id = EXCLUDED.ruleset_id,
			inactive_predicate_sql = EXCLUDED.inactive_predicate_sql,
			is_accept = EXCLUDED.is_accept, is_sql_cached = EXCLUDED.is_sql_cached,
			cached_sql = EXCLUDED.cached_sql, has_succeeded_once = EXCLUDED.has_succeeded_once,
			deleted = EXCLUDED.deleted, updated_at = EXCLUDED.updated_at`
	_, err := s.db.Exec(ctx, query,
		k.ID, k.Name, k.GroupName, k.Definition, k.KGName, k.MetricType, k.RulesetID,
		k.InactivePredicateSQL, k.IsAccept, k.IsSQLCached, k.CachedSQL,
		k.HasSucceededOnce, k.Deleted, k.CreatedAt, k.UpdatedAt)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "put kpi "+k.ID, true, err)
	}
	return nil
}

const kpiColumns = `id, name, group_name, definition, kg_name, metric_type, ruleset_id,
		inactive_predicate_sql, is_accept, is_sql_cached, cached_sql,
		has_succeeded_once, deleted, created_at, updated_at`

func scanKPI(row interface{ Scan(...any) error }) (*KPI, error) {
	k := &KPI{}
	err := row.Scan(&k.ID, &k.Name, &k.GroupName, &k.Definition, &k.KGName, &k.MetricType, &k.RulesetID,
		&k.InactivePredicateSQL, &k.IsAccept, &k.IsSQLCached, &k.CachedSQL,
		&k.HasSucceededOnce, &k.Deleted, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

func (s *PostgresStore) GetKPI(ctx context.Context, id string) (*KPI, error) {
	query := `SELECT ` + kpiColumns + ` FROM kpis WHERE id = $1 AND deleted = false`
	k, err := scanKPI(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFoundf("kpi", id)
		}
		return nil, apperrors.New(apperrors.KindDBQuery, "get kpi "+id, true, err)
	}
	return k, nil
}

func (s *PostgresStore) ListKPIs(ctx context.Context, groupName string) ([]*KPI, error) {
	query := `SELECT ` + kpiColumns + ` FROM kpis WHERE deleted = false`
	args := []any{}
	if groupName != "" {
		query += ` AND group_name = $1`
		args = append(args, groupName)
	}
	query += ` ORDER BY group_name, name`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "list kpis", true, err)
	}
	defer rows.Close()

	var out []*KPI
	for rows.Next() {
		k, err := scanKPI(rows)
		if err != nil {
			return nil, apperrors.New(apperrors.KindDBQuery, "scan kpi", true, err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteKPI(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `UPDATE kpis SET deleted = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "soft delete kpi "+id, true, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("kpi", id)
	}
	return nil
}

// SetCacheFlags reads the row, applies mutate, and writes it back with a
// WHERE clause pinned to the previously-read updated_at, so a concurrent
// writer's update causes this one to affect zero rows instead of
// silently clobbering it.
func (s *PostgresStore) SetCacheFlags(ctx context.Context, id string, mutate func(k *KPI) error) (*KPI, error) {
	k, err := s.GetKPI(ctx, id)
	if err != nil {
		return nil, err
	}
	priorUpdatedAt := k.UpdatedAt
	if err := mutate(k); err != nil {
		return nil, err
	}

	const query = `
		UPDATE kpis SET is_accept = $1, is_sql_cached = $2, cached_sql = $3,
			has_succeeded_once = $4, updated_at = now()
		WHERE id = $5 AND updated_at = $6`
	tag, err := s.db.Exec(ctx, query, k.IsAccept, k.IsSQLCached, k.CachedSQL, k.HasSucceededOnce, id, priorUpdatedAt)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "set kpi cache flags "+id, true, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.New(apperrors.KindStoreTransient, "kpi "+id+" changed concurrently, retry", true, nil)
	}
	return s.GetKPI(ctx, id)
}

func (s *PostgresStore) PutExecution(ctx context.Context, e *Execution) error {
	resultJSON, err := marshalSample(e.ResultData)
	if err != nil {
		return apperrors.Invalidf("marshal kpi execution result_data", err)
	}

	const query = `
		INSERT INTO kpi_executions (
			execution_id, kpi_id, status, generated_sql, enhanced_sql,
			number_of_records, execution_time_ms, confidence_score, result_data,
			source_table, target_table, error_message, execution_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status, generated_sql = EXCLUDED.generated_sql,
			enhanced_sql = EXCLUDED.enhanced_sql, number_of_records = EXCLUDED.number_of_records,
			execution_time_ms = EXCLUDED.execution_time_ms, confidence_score = EXCLUDED.confidence_score,
			result_data = EXCLUDED.result_data, source_table = EXCLUDED.source_table,
			target_table = EXCLUDED.target_table, error_message = EXCLUDED.error_message`
	_, err = s.db.Exec(ctx, query,
		e.ExecutionID, e.KPIID, e.Status, e.GeneratedSQL, e.EnhancedSQL,
		e.NumberOfRecords, e.ExecutionTimeMS, e.ConfidenceScore, resultJSON,
		e.SourceTable, e.TargetTable, e.ErrorMessage, e.ExecutionTimestamp)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "put kpi execution "+e.ExecutionID, true, err)
	}
	return nil
}

const executionColumns = `execution_id, kpi_id, status, generated_sql, enhanced_sql,
			number_of_records, execution_time_ms, confidence_score, result_data,
			source_table, target_table, error_message, execution_timestamp`

func scanExecution(row interface{ Scan(...any) error }) (*Execution, error) {
	e := &Execution{}
	var resultJSON []byte
	err := row.Scan(&e.ExecutionID, &e.KPIID, &e.Status, &e.GeneratedSQL, &e.EnhancedSQL,
		&e.NumberOfRecords, &e.ExecutionTimeMS, &e.ConfidenceScore, &resultJSON,
		&e.SourceTable, &e.TargetTable, &e.ErrorMessage, &e.ExecutionTimestamp)
	if err != nil {
		return nil, err
	}
	if len(resultJSON) > 0 && string(resultJSON) != "null" {
		if jsonErr := json.Unmarshal(resultJSON, &e.ResultData); jsonErr != nil {
			return nil, jsonErr
		}
	}
	return e, nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, executionID string) (*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM kpi_executions WHERE execution_id = $1`
	e, err := scanExecution(s.db.QueryRow(ctx, query, executionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFoundf("kpi execution", executionID)
		}
		return nil, apperrors.New(apperrors.KindDBQuery, "get kpi execution "+executionID, true, err)
	}
	return e, nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, kpiID string, filters ExecutionFilters) ([]*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM kpi_executions WHERE kpi_id = $1`
	args := []any{kpiID}
	argIdx := 2
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filters.Status)
		argIdx++
	}
	query += " ORDER BY execution_timestamp DESC, execution_id DESC"
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, filters.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "list kpi executions", true, err)
	}
	defer rows.Close()

	var out []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, apperrors.New(apperrors.KindDBQuery, "scan kpi execution", true, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func marshalSample(rows []map[string]any) ([]byte, error) {
	if rows == nil {
		return nil, nil
	}
	return json.Marshal(rows)
}
