package kpi

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/nlsql"
	"github.com/3frameslab/kgrecon/pkg/recon"
	"github.com/3frameslab/kgrecon/pkg/rules"
)

type fakeNLSQLExecutor struct {
	compiled *nlsql.CompiledQuery
	err      error
}

func (f *fakeNLSQLExecutor) Compile(ctx context.Context, req nlsql.CompileRequest) (*nlsql.CompiledQuery, error) {
	return f.compiled, f.err
}
func (f *fakeNLSQLExecutor) Run(ctx context.Context, req nlsql.CompileRequest, runner datasource.QueryExecutor) (*nlsql.QueryResult, error) {
	return nil, nil
}

var _ nlsql.Executor = (*fakeNLSQLExecutor)(nil)

type fakeRunner struct {
	result *datasource.QueryExecutionResult
	err    error
}

func (f *fakeRunner) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	return f.result, f.err
}
func (f *fakeRunner) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	return f.result, f.err
}
func (f *fakeRunner) Execute(ctx context.Context, stmt string) (*datasource.ExecuteResult, error) {
	return nil, nil
}
func (f *fakeRunner) ExecuteWithParams(ctx context.Context, stmt string, params []any) (*datasource.ExecuteResult, error) {
	return nil, nil
}
func (f *fakeRunner) ValidateQuery(ctx context.Context, sqlQuery string) error { return nil }
func (f *fakeRunner) ExplainQuery(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	return nil, nil
}
func (f *fakeRunner) QuoteIdentifier(name string) string { return name }
func (f *fakeRunner) Close() error                       { return nil }

var _ datasource.QueryExecutor = (*fakeRunner)(nil)

func newTestService(nlsqlExec nlsql.Executor) (Service, Store, recon.Store, rules.Store) {
	store := NewMemoryStore()
	reconStore := recon.NewMemoryStore()
	rulesStore := rules.NewMemoryStore()
	return NewService(store, nlsqlExec, reconStore, rulesStore, zap.NewNop()), store, reconStore, rulesStore
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeNLSQLExecutor{})
	k, err := svc.Create(context.Background(), &KPI{Name: "match rate", Definition: "materials not in the planning sheet", KGName: "kg1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.ID == "" || k.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be populated, got %+v", k)
	}
}

func TestSetCacheFlags_RejectsSQLCacheWithoutPriorSuccess(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeNLSQLExecutor{})
	k, _ := svc.Create(context.Background(), &KPI{Name: "k", Definition: "d", KGName: "kg1"})

	_, err := svc.SetCacheFlags(context.Background(), k.ID, true, true)
	if err == nil {
		t.Fatal("expected rejection of is_sql_cached=true with no prior successful execution")
	}
}

func TestExecute_PersistsSQLBeforeRunningAndMarksSuccess(t *testing.T) {
	nlsqlExec := &fakeNLSQLExecutor{compiled: &nlsql.CompiledQuery{
		SQL:     "SELECT * FROM widgets",
		Intent:  nlsql.QueryIntent{SourceTable: "widgets", Confidence: 0.9},
		Dialect: nlsql.DialectPostgreSQL,
	}}
	svc, store, _, _ := newTestService(nlsqlExec)
	k, _ := svc.Create(context.Background(), &KPI{Name: "k", Definition: "widgets", KGName: "kg1"})

	runner := &fakeRunner{result: &datasource.QueryExecutionResult{RowCount: 2, Rows: []map[string]any{{"id": 1}, {"id": 2}}}}
	exec, err := svc.Execute(context.Background(), k.ID, ExecuteParams{Dialect: "postgresql"}, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Status != ExecSuccess || exec.NumberOfRecords != 2 {
		t.Fatalf("got %+v", exec)
	}
	if exec.GeneratedSQL != "SELECT * FROM widgets" || exec.EnhancedSQL != exec.GeneratedSQL {
		t.Fatalf("expected generated/enhanced sql populated, got %+v", exec)
	}

	updated, err := store.GetKPI(context.Background(), k.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.HasSucceededOnce {
		t.Fatal("expected has_succeeded_once to be set after a successful execution")
	}

	// Now caching should be allowed.
	cached, err := svc.SetCacheFlags(context.Background(), k.ID, true, true)
	if err != nil {
		t.Fatalf("unexpected error enabling cache after success: %v", err)
	}
	if !cached.IsSQLCached {
		t.Fatal("expected is_sql_cached to be true")
	}
}

func TestExecute_PersistsSQLEvenOnRunFailure(t *testing.T) {
	nlsqlExec := &fakeNLSQLExecutor{compiled: &nlsql.CompiledQuery{SQL: "SELECT * FROM widgets", Intent: nlsql.QueryIntent{}}}
	svc, store, _, _ := newTestService(nlsqlExec)
	k, _ := svc.Create(context.Background(), &KPI{Name: "k", Definition: "widgets", KGName: "kg1"})

	runner := &fakeRunner{err: context.DeadlineExceeded}
	exec, err := svc.Execute(context.Background(), k.ID, ExecuteParams{}, runner)
	if err == nil {
		t.Fatal("expected the runner's error to propagate")
	}
	if exec.Status != ExecFailed || exec.GeneratedSQL == "" || exec.ErrorMessage == "" {
		t.Fatalf("expected failed execution with sql retained, got %+v", exec)
	}

	persisted, getErr := store.GetExecution(context.Background(), exec.ExecutionID)
	if getErr != nil {
		t.Fatalf("unexpected error: %v", getErr)
	}
	if persisted.GeneratedSQL != exec.GeneratedSQL {
		t.Fatalf("expected sql to be persisted despite failure, got %+v", persisted)
	}
}

func TestClearCache_NullsSQLAndFlags(t *testing.T) {
	nlsqlExec := &fakeNLSQLExecutor{compiled: &nlsql.CompiledQuery{SQL: "SELECT 1", Intent: nlsql.QueryIntent{}}}
	svc, _, _, _ := newTestService(nlsqlExec)
	k, _ := svc.Create(context.Background(), &KPI{Name: "k", Definition: "d", KGName: "kg1"})

	runner := &fakeRunner{result: &datasource.QueryExecutionResult{RowCount: 1, Rows: []map[string]any{{"a": 1}}}}
	if _, err := svc.Execute(context.Background(), k.ID, ExecuteParams{}, runner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SetCacheFlags(context.Background(), k.ID, true, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cleared, err := svc.ClearCache(context.Background(), k.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared.IsSQLCached || cleared.IsAccept || cleared.CachedSQL != "" {
		t.Fatalf("expected cache cleared, got %+v", cleared)
	}
}

func TestEvidence_FiltersByImplicitMatchCategory(t *testing.T) {
	svc, store, reconStore, rulesStore := newTestService(&fakeNLSQLExecutor{})

	ruleset := &rules.Ruleset{RulesetID: "rs1", Rules: []rules.Rule{
		{RuleID: "r1", SourceTable: "orders", TargetTable: "shipments", SourceColumns: []string{"order_id"}, TargetColumns: []string{"order_id"}, MatchType: rules.MatchExact},
	}}
	if err := rulesStore.Put(context.Background(), ruleset); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reconStore.Put(context.Background(), &recon.ExecutionRecord{
		ExecutionID: "e1", RulesetID: "rs1", SourceTable: "stage_src", TargetTable: "stage_tgt", StartedAt: time.Now(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	k, err := svc.Create(context.Background(), &KPI{
		Name: "unmatched", Definition: "orders not shipped", KGName: "kg1",
		MetricType: MetricUnmatchedSourceCount, RulesetID: "rs1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runner := &fakeRunner{result: &datasource.QueryExecutionResult{RowCount: 1, Rows: []map[string]any{{"order_id": 5}}}}
	rows, err := svc.Evidence(context.Background(), EvidenceRequest{KPIID: k.ID, Limit: 10}, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %+v", rows)
	}
}
