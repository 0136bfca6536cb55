package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/nlsql"
	"github.com/3frameslab/kgrecon/pkg/recon"
	"github.com/3frameslab/kgrecon/pkg/rules"
	querysql "github.com/3frameslab/kgrecon/pkg/sql"
)

// Service implements CRUD over KPI definitions, cache-flag management,
// execution, and evidence drill-down, reusing pkg/nlsql for compilation
// and pkg/recon's persisted execution records for evidence's staging
// table locations.
type Service interface {
	Create(ctx context.Context, k *KPI) (*KPI, error)
	Update(ctx context.Context, k *KPI) (*KPI, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*KPI, error)
	List(ctx context.Context, groupName string) ([]*KPI, error)

	SetCacheFlags(ctx context.Context, id string, isAccept, isSQLCached bool) (*KPI, error)
	ClearCache(ctx context.Context, id string) (*KPI, error)

	Execute(ctx context.Context, kpiID string, params ExecuteParams, runner datasource.QueryExecutor) (*Execution, error)
	ListExecutions(ctx context.Context, kpiID string, filters ExecutionFilters) ([]*Execution, error)
	GetExecution(ctx context.Context, executionID string) (*Execution, error)
	Drilldown(ctx context.Context, req DrilldownRequest, runner datasource.QueryExecutor) (*DrilldownResult, error)
	Evidence(ctx context.Context, req EvidenceRequest, runner datasource.QueryExecutor) ([]map[string]any, error)

	Dashboard(ctx context.Context) ([]DashboardGroup, error)
}

type service struct {
	store       Store
	nlsqlExec   nlsql.Executor
	reconStore  recon.Store
	rulesStore  rules.Store
	logger      *zap.Logger
}

func NewService(store Store, nlsqlExec nlsql.Executor, reconStore recon.Store, rulesStore rules.Store, logger *zap.Logger) Service {
	return &service{store: store, nlsqlExec: nlsqlExec, reconStore: reconStore, rulesStore: rulesStore, logger: logger.Named("kpi.service")}
}

func (s *service) Create(ctx context.Context, k *KPI) (*KPI, error) {
	if k.Name == "" || k.Definition == "" || k.KGName == "" {
		return nil, apperrors.Invalidf("kpi requires name, definition, and kg_name", nil)
	}
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	k.CreatedAt, k.UpdatedAt = now, now
	k.Deleted = false
	if err := s.store.PutKPI(ctx, k); err != nil {
		return nil, err
	}
	return s.store.GetKPI(ctx, k.ID)
}

func (s *service) Update(ctx context.Context, k *KPI) (*KPI, error) {
	existing, err := s.store.GetKPI(ctx, k.ID)
	if err != nil {
		return nil, err
	}
	k.CreatedAt = existing.CreatedAt
	k.HasSucceededOnce = existing.HasSucceededOnce
	k.UpdatedAt = time.Now().UTC()
	if err := s.store.PutKPI(ctx, k); err != nil {
		return nil, err
	}
	return s.store.GetKPI(ctx, k.ID)
}

func (s *service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteKPI(ctx, id)
}

func (s *service) Get(ctx context.Context, id string) (*KPI, error) {
	return s.store.GetKPI(ctx, id)
}

func (s *service) List(ctx context.Context, groupName string) ([]*KPI, error) {
	return s.store.ListKPIs(ctx, groupName)
}

// SetCacheFlags enforces the invariant that is_sql_cached=true requires a
// prior successful execution; isAccept carries no such precondition.
func (s *service) SetCacheFlags(ctx context.Context, id string, isAccept, isSQLCached bool) (*KPI, error) {
	return s.store.SetCacheFlags(ctx, id, func(k *KPI) error {
		if isSQLCached && !k.HasSucceededOnce {
			return apperrors.Invalidf("cannot cache sql for kpi "+id+" with no prior successful execution", nil)
		}
		k.IsAccept = isAccept
		k.IsSQLCached = isSQLCached
		return nil
	})
}

// ClearCache nulls cached_sql and clears both flags, per spec.
func (s *service) ClearCache(ctx context.Context, id string) (*KPI, error) {
	return s.store.SetCacheFlags(ctx, id, func(k *KPI) error {
		k.CachedSQL = ""
		k.IsSQLCached = false
		k.IsAccept = false
		return nil
	})
}

func (s *service) Execute(ctx context.Context, kpiID string, params ExecuteParams, runner datasource.QueryExecutor) (*Execution, error) {
	k, err := s.store.GetKPI(ctx, kpiID)
	if err != nil {
		return nil, err
	}

	exec := &Execution{
		ExecutionID:        uuid.NewString(),
		KPIID:              kpiID,
		Status:             ExecPending,
		ExecutionTimestamp: time.Now().UTC(),
	}
	if err := s.store.PutExecution(ctx, exec); err != nil {
		return nil, err
	}

	dialect := nlsql.Dialect(params.Dialect)
	if dialect == "" {
		dialect = nlsql.DialectPostgreSQL
	}

	var sql string
	var boundValues []any
	var sourceTable, targetTable string
	var confidence float64
	if k.IsSQLCached && k.CachedSQL != "" {
		prepared, values, prepErr := bindCachedParams(k.CachedSQL, params.Params)
		if prepErr != nil {
			exec.Status = ExecFailed
			exec.ErrorMessage = prepErr.Error()
			_ = s.store.PutExecution(ctx, exec)
			return exec, prepErr
		}
		sql, boundValues = prepared, values
		confidence = 1 // a cached query was validated by a prior successful run
	} else {
		compiled, compileErr := s.nlsqlExec.Compile(ctx, nlsql.CompileRequest{
			KGName: k.KGName, Definition: k.Definition, Dialect: dialect, Limit: params.Limit, UseLLM: params.UseLLM,
		})
		if compileErr != nil {
			exec.Status = ExecFailed
			exec.ErrorMessage = compileErr.Error()
			_ = s.store.PutExecution(ctx, exec)
			return exec, compileErr
		}
		sql = compiled.SQL
		sourceTable, targetTable = compiled.Intent.SourceTable, compiled.Intent.TargetTable
		confidence = compiled.Intent.Confidence
	}

	// Step 3: the generated/cached SQL is persisted before execution
	// regardless of outcome. The OPS_PLANNER enhancement (pkg/nlsql's
	// Generate) is already folded into sql at this point, so
	// generated_sql and enhanced_sql are recorded identically here —
	// the two-stage pre/post split spec.md describes collapses to one
	// stage in this implementation's generator.
	exec.GeneratedSQL = sql
	exec.EnhancedSQL = sql
	if err := s.store.PutExecution(ctx, exec); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *datasource.QueryExecutionResult
	var runErr error
	if boundValues != nil {
		result, runErr = runner.QueryWithParams(ctx, sql, boundValues, effectiveLimit(params.Limit))
	} else {
		result, runErr = runner.Query(ctx, sql, effectiveLimit(params.Limit))
	}
	elapsed := time.Since(start)
	exec.ExecutionTimeMS = elapsed.Milliseconds()

	if runErr != nil {
		exec.Status = ExecFailed
		exec.ErrorMessage = runErr.Error()
		if putErr := s.store.PutExecution(ctx, exec); putErr != nil {
			s.logger.Error("failed to persist failed kpi execution", zap.String("execution_id", exec.ExecutionID), zap.Error(putErr))
		}
		return exec, runErr
	}

	exec.Status = ExecSuccess
	exec.NumberOfRecords = result.RowCount
	exec.ConfidenceScore = confidence
	exec.ResultData = capRows(result.Rows, maxSampleRows)
	exec.SourceTable, exec.TargetTable = sourceTable, targetTable

	if err := s.store.PutExecution(ctx, exec); err != nil {
		return nil, err
	}

	if _, err := s.store.SetCacheFlags(ctx, kpiID, func(mk *KPI) error {
		mk.HasSucceededOnce = true
		return nil
	}); err != nil {
		s.logger.Warn("failed to record kpi success flag", zap.String("kpi_id", kpiID), zap.Error(err))
	}

	return exec, nil
}

// bindCachedParams prepares a cached KPI's {{param}} SQL for execution. A
// cached query with no placeholders is returned unchanged with nil values,
// which tells the caller to use the unparameterized runner.Query path.
// Supplied values are screened for injection patterns before binding, since
// they bypass nlsql's own generation-time checks entirely.
func bindCachedParams(cachedSQL string, supplied map[string]any) (string, []any, error) {
	names := querysql.ExtractParameters(cachedSQL)
	if len(names) == 0 {
		return cachedSQL, nil, nil
	}

	defs := make([]querysql.ParamDef, len(names))
	for i, name := range names {
		defs[i] = querysql.ParamDef{Name: name, Required: true}
	}
	for _, name := range names {
		if _, ok := supplied[name]; !ok {
			return "", nil, apperrors.Invalidf("missing required parameter \""+name+"\" for cached kpi query", nil)
		}
	}

	if violations := querysql.CheckAllParameters(supplied); len(violations) > 0 {
		return "", nil, apperrors.Invalidf(fmt.Sprintf("parameter %q flagged as a possible sql injection attempt", violations[0].ParamName), nil)
	}

	prepared, values, err := querysql.SubstituteParameters(cachedSQL, defs, supplied)
	if err != nil {
		return "", nil, apperrors.Invalidf("failed to bind cached kpi parameters", err)
	}
	return prepared, values, nil
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return datasource.MaxQueryLimit
	}
	return limit
}

func capRows(rows []map[string]any, n int) []map[string]any {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func (s *service) ListExecutions(ctx context.Context, kpiID string, filters ExecutionFilters) ([]*Execution, error) {
	return s.store.ListExecutions(ctx, kpiID, filters)
}

func (s *service) GetExecution(ctx context.Context, executionID string) (*Execution, error) {
	return s.store.GetExecution(ctx, executionID)
}

// Drilldown re-runs the execution's recorded SQL inside an OFFSET/LIMIT
// page window on the server. No ORDER BY is added, so page boundaries
// follow whatever row order the recorded SQL produces.
func (s *service) Drilldown(ctx context.Context, req DrilldownRequest, runner datasource.QueryExecutor) (*DrilldownResult, error) {
	exec, err := s.store.GetExecution(ctx, req.ExecutionID)
	if err != nil {
		return nil, err
	}
	if exec.GeneratedSQL == "" {
		return nil, apperrors.Invalidf("execution "+req.ExecutionID+" has no recorded sql to page through", nil)
	}
	page, pageSize := req.Page, req.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	pagedSQL := wrapForPagination(exec.GeneratedSQL, pageSize, (page-1)*pageSize)
	result, err := runner.Query(ctx, pagedSQL, pageSize)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "drilldown page for execution "+req.ExecutionID, true, err)
	}
	return &DrilldownResult{Rows: result.Rows, Page: page, PageSize: pageSize}, nil
}

// wrapForPagination wraps an already-generated SELECT in an outer query
// that applies OFFSET/LIMIT. It adds no ORDER BY of its own, so rows are
// paged in whatever order the database returns the subquery; repeated
// calls are not guaranteed to see the same order.
func wrapForPagination(innerSQL string, limit, offset int) string {
	return "SELECT * FROM (" + innerSQL + ") AS kpi_page OFFSET " + itoa(offset) + " LIMIT " + itoa(limit)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Evidence reads reconciliation rows behind the KPI's most recent linked
// execution, filtered by the KPI's implicit match category plus an
// optional additional filter ANDed in.
func (s *service) Evidence(ctx context.Context, req EvidenceRequest, runner datasource.QueryExecutor) ([]map[string]any, error) {
	k, err := s.store.GetKPI(ctx, req.KPIID)
	if err != nil {
		return nil, err
	}
	if k.RulesetID == "" {
		return nil, apperrors.Invalidf("kpi "+req.KPIID+" has no linked ruleset to draw evidence from", nil)
	}

	executions, err := s.reconStore.List(ctx, k.RulesetID)
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, apperrors.NotFoundf("reconciliation execution for kpi", req.KPIID)
	}
	latest := executions[0]
	for _, e := range executions {
		if e.StartedAt.After(latest.StartedAt) {
			latest = e
		}
	}

	ruleset, err := s.rulesStore.Get(ctx, k.RulesetID)
	if err != nil {
		return nil, err
	}
	predicate, err := recon.CombinedMatchPredicateSQL(ruleset)
	if err != nil {
		return nil, err
	}

	sql, err := buildEvidenceQuery(evidencePlan{
		metricType:        k.MetricType,
		sourceTable:       latest.SourceTable,
		targetTable:       latest.TargetTable,
		matchPredicateSQL: predicate,
		inactivePredicate: k.InactivePredicateSQL,
		userFilterSQL:     req.MatchStatus,
		limit:             req.Limit,
		offset:            req.Offset,
	})
	if err != nil {
		return nil, err
	}

	result, err := runner.Query(ctx, sql, positiveOr(req.Limit, 100))
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "evidence query for kpi "+req.KPIID, true, err)
	}
	return result.Rows, nil
}

// Dashboard groups active KPIs by group_name and joins each group's most
// recent execution status and record count, for the aggregation endpoint.
func (s *service) Dashboard(ctx context.Context) ([]DashboardGroup, error) {
	kpis, err := s.store.ListKPIs(ctx, "")
	if err != nil {
		return nil, err
	}

	groups := map[string]*DashboardGroup{}
	var order []string
	for _, k := range kpis {
		g, ok := groups[k.GroupName]
		if !ok {
			g = &DashboardGroup{GroupName: k.GroupName}
			groups[k.GroupName] = g
			order = append(order, k.GroupName)
		}
		g.KPIs = append(g.KPIs, *k)

		executions, err := s.store.ListExecutions(ctx, k.ID, ExecutionFilters{Limit: 1})
		if err != nil {
			s.logger.Warn("failed to load latest execution for dashboard", zap.String("kpi_id", k.ID), zap.Error(err))
			continue
		}
		if len(executions) == 0 {
			continue
		}
		latest := executions[0]
		if g.LatestExecutionTime.IsZero() || latest.ExecutionTimestamp.After(g.LatestExecutionTime) {
			g.LatestStatus = latest.Status
			g.LatestRecordCount = latest.NumberOfRecords
			g.LatestExecutionTime = latest.ExecutionTimestamp
		}
	}

	out := make([]DashboardGroup, 0, len(order))
	for _, name := range order {
		out = append(out, *groups[name])
	}
	return out, nil
}
